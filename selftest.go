package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hanwen/go-mtpd/database"
	"github.com/hanwen/go-mtpd/initiator"
	"github.com/hanwen/go-mtpd/log"
	"github.com/hanwen/go-mtpd/mtp"
	"github.com/hanwen/go-mtpd/server"
	"github.com/hanwen/go-mtpd/transport"
)

const selftestStorage = 0x00010001

func selftestCommand() *cli.Command {
	return &cli.Command{
		Name:  "selftest",
		Usage: "Run a host session against an in-process device",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Log every container",
			},
			&cli.IntFlag{
				Name:  "size",
				Usage: "Bytes to upload",
				Value: 1 << 20,
			},
		},
		Action: selftestAction,
	}
}

func selftestAction(c *cli.Context) error {
	debug := c.Bool("debug")
	children := log.PrepareChildren(log.Root, log.DebugFlags{MTP: debug, Transport: debug, DB: debug})
	mtp.SetLoggers(children)

	root, err := os.MkdirTemp("", "mtpd-selftest")
	if err != nil {
		return err
	}
	defer os.RemoveAll(root)
	if err := os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hello world\n"), 0644); err != nil {
		return err
	}

	db, err := database.Open(database.Options{FriendlyName: "selftest", Log: children.DB})
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.AddStorage(selftestStorage, root); err != nil {
		return err
	}

	a, b := net.Pipe()
	dev := transport.NewStream(a, nil, children.Transport)
	host := transport.NewStream(b, nil, children.Transport)

	srv := server.New(dev, db, server.Options{
		Manufacturer:  "go-mtpd",
		Model:         "selftest",
		DeviceVersion: version,
		SerialNumber:  "0000000000000001",
		Log:           children,
	})
	srv.AddStorage(server.NewStorage(selftestStorage, root, "Self test", 0, false, 0))
	db.SetNotifier(srv)

	done := make(chan error, 1)
	go func() { done <- srv.Run(context.Background()) }()

	runErr := runSelftest(initiator.New(host, children.MTP), dev, root, c.Int("size"))
	host.Close()
	if err := <-done; err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		return cli.Exit(fmt.Sprintf("selftest failed: %v", runErr), 1)
	}
	fmt.Println("selftest passed")
	return nil
}

func step(name string, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	fmt.Printf("ok  %s\n", name)
	return nil
}

func waitEvent(dev *transport.Stream, code uint16) error {
	select {
	case p := <-dev.Events():
		ev, err := initiator.ReadEvent(bytes.NewReader(p))
		if err != nil {
			return err
		}
		if ev.Code != code {
			return fmt.Errorf("got event %s, want %s", mtp.EventName(ev.Code), mtp.EventName(code))
		}
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("no %s event", mtp.EventName(code))
	}
}

func runSelftest(c *initiator.Client, dev *transport.Stream, root string, size int) error {
	var info mtp.DeviceInfo
	if err := step("GetDeviceInfo", c.GetDeviceInfo(&info)); err != nil {
		return err
	}
	fmt.Printf("    %s %s, %d operations\n", info.Manufacturer, info.Model, len(info.OperationsSupported))

	if err := step("OpenSession", c.OpenSession()); err != nil {
		return err
	}

	ids, err := c.GetStorageIDs()
	if err := step("GetStorageIDs", err); err != nil {
		return err
	}
	if len(ids) != 1 || ids[0] != selftestStorage {
		return fmt.Errorf("unexpected storages %x", ids)
	}

	handles, err := c.GetObjectHandles(selftestStorage, 0, mtp.AllHandles)
	if err := step("GetObjectHandles", err); err != nil {
		return err
	}
	if len(handles) != 1 {
		return fmt.Errorf("got %d objects, want 1", len(handles))
	}

	var buf bytes.Buffer
	if err := step("GetObject", c.GetObject(handles[0], &buf)); err != nil {
		return err
	}
	if buf.String() != "hello world\n" {
		return fmt.Errorf("GetObject returned %q", buf.String())
	}

	content := strings.Repeat("x", size)
	oi := mtp.ObjectInfo{
		ObjectFormat:     mtp.OFC_Undefined,
		CompressedSize:   uint32(size),
		Filename:         "upload.bin",
		ModificationDate: time.Now(),
	}
	_, _, handle, err := c.SendObjectInfo(selftestStorage, 0, &oi)
	if err := step("SendObjectInfo", err); err != nil {
		return err
	}
	start := time.Now()
	if err := step("SendObject", c.SendObject(strings.NewReader(content), int64(size))); err != nil {
		return err
	}
	fmt.Printf("    %d bytes in %v\n", size, time.Since(start).Round(time.Millisecond))
	if fi, err := os.Stat(filepath.Join(root, "upload.bin")); err != nil || fi.Size() != int64(size) {
		return fmt.Errorf("uploaded file not on disk: %v", err)
	}

	if err := step("DeleteObject", c.DeleteObject(handle)); err != nil {
		return err
	}
	if err := step("ObjectRemoved event", waitEvent(dev, mtp.EC_ObjectRemoved)); err != nil {
		return err
	}

	return step("CloseSession", c.CloseSession())
}
