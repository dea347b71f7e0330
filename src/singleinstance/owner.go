package singleinstance

import (
	"context"
	"fmt"

	gnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// Owner identifies the process listening on a TCP port.
type Owner struct {
	PID  int32
	Name string
}

func (o Owner) String() string {
	if o.Name == "" {
		return fmt.Sprintf("pid %d", o.PID)
	}
	return fmt.Sprintf("%s (pid %d)", o.Name, o.PID)
}

// PortOwner looks the listener on port up in the connection table. It
// reports false when the table cannot be read or nobody listens there.
func PortOwner(ctx context.Context, port int) (Owner, bool) {
	conns, err := gnet.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return Owner{}, false
	}
	for _, c := range conns {
		if c.Status != "LISTEN" || c.Laddr.Port != uint32(port) || c.Pid == 0 {
			continue
		}
		o := Owner{PID: c.Pid}
		if p, err := process.NewProcessWithContext(ctx, c.Pid); err == nil {
			o.Name, _ = p.NameWithContext(ctx)
		}
		return o, true
	}
	return Owner{}, false
}
