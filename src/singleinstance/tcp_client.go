package singleinstance

import (
	"context"
	"errors"
	"strconv"
	"time"
)

type tcpClient struct{}

func newTcpClient() Client { return &tcpClient{} }

func (c *tcpClient) Trigger(ctx context.Context) (bool, string, error) {
	timeout := 2 * time.Second
	addr, ok := findResident(ctx, timeout)
	if !ok {
		return false, "", nil
	}
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			timeout = d
		}
	}
	status, body, err := exchange(addr, CommandCapture+"\n", timeout)
	if err != nil {
		// answered PING but not the command
		return true, "", err
	}
	switch status {
	case "SUCCESS\n":
		return true, body, nil
	case "ERROR\n":
		return true, "", errors.New(body)
	}
	return true, "", errors.New("unexpected resident response " + strconv.Quote(status))
}
