package database

import (
	"path/filepath"
	"strings"

	"github.com/hanwen/go-mtpd/mtp"
)

var extensionFormats = map[string]uint16{
	".txt":  mtp.OFC_Text,
	".htm":  mtp.OFC_HTML,
	".html": mtp.OFC_HTML,
	".sh":   mtp.OFC_Script,
	".aif":  mtp.OFC_AIFF,
	".aiff": mtp.OFC_AIFF,
	".wav":  mtp.OFC_WAV,
	".mp3":  mtp.OFC_MP3,
	".avi":  mtp.OFC_AVI,
	".mpg":  mtp.OFC_MPEG,
	".mpeg": mtp.OFC_MPEG,
	".asf":  mtp.OFC_ASF,
	".jpg":  mtp.OFC_EXIF_JPEG,
	".jpeg": mtp.OFC_EXIF_JPEG,
	".bmp":  mtp.OFC_BMP,
	".gif":  mtp.OFC_GIF,
	".png":  mtp.OFC_PNG,
	".tif":  mtp.OFC_TIFF,
	".tiff": mtp.OFC_TIFF,
	".jp2":  mtp.OFC_JP2,
	".dng":  mtp.OFC_DNG,
	".wma":  mtp.OFC_MTP_WMA,
	".ogg":  mtp.OFC_MTP_OGG,
	".aac":  mtp.OFC_MTP_AAC,
	".m4a":  mtp.OFC_MTP_AAC,
	".flac": mtp.OFC_MTP_FLAC,
	".wmv":  mtp.OFC_MTP_WMV,
	".mp4":  mtp.OFC_MTP_MP4,
	".m4v":  mtp.OFC_MTP_MP4,
	".3gp":  mtp.OFC_MTP_3GP,
	".wpl":  mtp.OFC_MTP_WPLPlaylist,
	".m3u":  mtp.OFC_MTP_M3UPlaylist,
	".mpl":  mtp.OFC_MTP_MPLPlaylist,
	".asx":  mtp.OFC_MTP_ASXPlaylist,
	".pls":  mtp.OFC_MTP_PLSPlaylist,
	".xml":  mtp.OFC_MTP_XMLDocument,
	".doc":  mtp.OFC_MTP_MSWordDocument,
	".xls":  mtp.OFC_MTP_MSExcelSpreadsheetXLS,
	".ppt":  mtp.OFC_MTP_MSPowerpointPresentationPPT,
}

// FormatForName guesses the object format from a file extension.
func FormatForName(name string) uint16 {
	if f, ok := extensionFormats[strings.ToLower(filepath.Ext(name))]; ok {
		return f
	}
	return mtp.OFC_Undefined
}

var playbackFormats = []uint16{
	mtp.OFC_Undefined,
	mtp.OFC_Association,
	mtp.OFC_Text,
	mtp.OFC_HTML,
	mtp.OFC_WAV,
	mtp.OFC_MP3,
	mtp.OFC_AVI,
	mtp.OFC_MPEG,
	mtp.OFC_ASF,
	mtp.OFC_EXIF_JPEG,
	mtp.OFC_TIFF_EP,
	mtp.OFC_BMP,
	mtp.OFC_GIF,
	mtp.OFC_JFIF,
	mtp.OFC_PNG,
	mtp.OFC_TIFF,
	mtp.OFC_DNG,
	mtp.OFC_MTP_WMA,
	mtp.OFC_MTP_OGG,
	mtp.OFC_MTP_AAC,
	mtp.OFC_MTP_FLAC,
	mtp.OFC_MTP_WMV,
	mtp.OFC_MTP_MP4,
	mtp.OFC_MTP_3GP,
	mtp.OFC_MTP_AbstractAudioVideoPlaylist,
	mtp.OFC_MTP_WPLPlaylist,
	mtp.OFC_MTP_M3UPlaylist,
	mtp.OFC_MTP_PLSPlaylist,
	mtp.OFC_MTP_XMLDocument,
}

func (db *DB) GetSupportedPlaybackFormats() []uint16 {
	return playbackFormats
}

// GetSupportedCaptureFormats is empty: the device captures nothing.
func (db *DB) GetSupportedCaptureFormats() []uint16 {
	return nil
}
