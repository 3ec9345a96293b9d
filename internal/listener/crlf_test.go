package listener

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/pixil98/go-testutil"
)

type bufferConn struct {
	in  *bytes.Buffer
	out bytes.Buffer
}

func (c *bufferConn) Read(p []byte) (int, error)  { return c.in.Read(p) }
func (c *bufferConn) Write(p []byte) (int, error) { return c.out.Write(p) }

func TestCRLFReadWriter(t *testing.T) {
	tests := map[string]struct {
		input    string
		write    string
		expRead  string
		expWrite string
	}{
		"telnet line endings": {
			input:    "claim horse-1\r\n",
			write:    "You mount Horse 1.\n",
			expRead:  "claim horse-1\n",
			expWrite: "You mount Horse 1.\r\n",
		},
		"ssh carriage return": {
			input:   "look\r",
			expRead: "look\n",
		},
		"plain newline": {
			input:    "quit\n",
			write:    "> ",
			expRead:  "quit\n",
			expWrite: "> ",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			conn := &bufferConn{in: bytes.NewBufferString(tt.input)}
			rw := newCRLFReadWriter(conn)

			got, err := io.ReadAll(rw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			testutil.AssertEqual(t, "read", string(got), tt.expRead)

			n, err := rw.Write([]byte(tt.write))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			testutil.AssertEqual(t, "written length", n, len(tt.write))
			testutil.AssertEqual(t, "written", conn.out.String(), tt.expWrite)
		})
	}
}

type runnerFunc func(context.Context, io.ReadWriter) error

func (f runnerFunc) RunSession(ctx context.Context, conn io.ReadWriter) error {
	return f(ctx, conn)
}

func TestConnectionManager_AcceptConnection(t *testing.T) {
	var got io.ReadWriter
	conn := &bufferConn{in: &bytes.Buffer{}}
	cm := NewConnectionManager(runnerFunc(func(_ context.Context, c io.ReadWriter) error {
		got = c
		return errors.New("connection reset")
	}))

	cm.AcceptConnection(context.Background(), conn)
	testutil.AssertEqual(t, "conn passed through", got == io.ReadWriter(conn), true)
}
