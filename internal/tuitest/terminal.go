package tuitest

import (
	"bytes"
	"io"
)

// terminalQuery pairs a capability query a program may write with the answer a real
// terminal would give. termenv and bubbletea block briefly on these at startup.
type terminalQuery struct {
	query []byte
	reply []byte
}

var terminalQueries = []terminalQuery{
	// cursor position
	{query: []byte("\x1b[6n"), reply: []byte("\x1b[1;1R")},
	// foreground colour, BEL and ST terminated
	{query: []byte("\x1b]10;?\x07"), reply: []byte("\x1b]10;rgb:cccc/cccc/cccc\x07")},
	{query: []byte("\x1b]10;?\x1b\\"), reply: []byte("\x1b]10;rgb:cccc/cccc/cccc\x1b\\")},
	// background colour, dark
	{query: []byte("\x1b]11;?\x07"), reply: []byte("\x1b]11;rgb:0000/0000/0000\x07")},
	{query: []byte("\x1b]11;?\x1b\\"), reply: []byte("\x1b]11;rgb:0000/0000/0000\x1b\\")},
	// primary device attributes
	{query: []byte("\x1b[c"), reply: []byte("\x1b[?62;22c")},
}

// keepTail bytes survive between reads so a query split across two reads still matches.
const keepTail = 64

type terminalResponder struct {
	w   io.Writer
	buf []byte
}

func newTerminalResponder(w io.Writer) *terminalResponder {
	return &terminalResponder{w: w, buf: make([]byte, 0, 128)}
}

// Process answers every complete query seen so far, in the order the queries appear.
func (tr *terminalResponder) Process(chunk []byte) {
	tr.buf = append(tr.buf, chunk...)
	for {
		idx, q := tr.next()
		if q == nil {
			break
		}
		tr.buf = tr.buf[idx+len(q.query):]
		_, _ = tr.w.Write(q.reply)
	}
	if len(tr.buf) > keepTail {
		tr.buf = append(tr.buf[:0], tr.buf[len(tr.buf)-keepTail:]...)
	}
}

func (tr *terminalResponder) next() (int, *terminalQuery) {
	first := -1
	var match *terminalQuery
	for i := range terminalQueries {
		idx := bytes.Index(tr.buf, terminalQueries[i].query)
		if idx >= 0 && (first < 0 || idx < first) {
			first, match = idx, &terminalQueries[i]
		}
	}
	return first, match
}
