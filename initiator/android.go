package initiator

import (
	"io"

	"github.com/hanwen/go-mtpd/mtp"
)

// Android edit extensions. SendPartialObject and TruncateObject only
// work between BeginEditObject and EndEditObject.

func (c *Client) BeginEditObject(handle uint32) error {
	var req, rep mtp.Container
	req.Code = mtp.OC_ANDROID_BEGIN_EDIT_OBJECT
	req.Param = []uint32{handle}
	return c.RunTransaction(&req, &rep, nil, nil, 0)
}

// SendPartialObject writes size bytes of r at offset. It returns the
// count the responder stored.
func (c *Client) SendPartialObject(handle uint32, offset int64, r io.Reader, size uint32) (uint32, error) {
	lo, hi := mtp.SplitOffset(offset)
	var req, rep mtp.Container
	req.Code = mtp.OC_ANDROID_SEND_PARTIAL_OBJECT
	req.Param = []uint32{handle, lo, hi, size}
	if err := c.RunTransaction(&req, &rep, nil, r, int64(size)); err != nil {
		return 0, err
	}
	return firstParam(rep), nil
}

func (c *Client) TruncateObject(handle uint32, size int64) error {
	lo, hi := mtp.SplitOffset(size)
	var req, rep mtp.Container
	req.Code = mtp.OC_ANDROID_TRUNCATE_OBJECT
	req.Param = []uint32{handle, lo, hi}
	return c.RunTransaction(&req, &rep, nil, nil, 0)
}

func (c *Client) EndEditObject(handle uint32) error {
	var req, rep mtp.Container
	req.Code = mtp.OC_ANDROID_END_EDIT_OBJECT
	req.Param = []uint32{handle}
	return c.RunTransaction(&req, &rep, nil, nil, 0)
}
