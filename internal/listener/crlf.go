package listener

import (
	"bytes"
	"io"
)

// lineEndings normalizes input to \n and writes \r\n, so sessions only ever
// deal with \n.
type lineEndings struct {
	rw io.ReadWriter
}

func newCRLFReadWriter(rw io.ReadWriter) io.ReadWriter {
	return &lineEndings{rw: rw}
}

// Read maps telnet's \r\n and a bare \r from ssh without a pty to \n.
func (c *lineEndings) Read(p []byte) (int, error) {
	n, err := c.rw.Read(p)
	if n > 0 {
		data := bytes.ReplaceAll(p[:n], []byte("\r\n"), []byte("\n"))
		data = bytes.ReplaceAll(data, []byte("\r"), []byte("\n"))
		n = copy(p, data)
	}
	return n, err
}

// Write reports len(p) rather than the expanded length.
func (c *lineEndings) Write(p []byte) (int, error) {
	_, err := c.rw.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n")))
	return len(p), err
}
