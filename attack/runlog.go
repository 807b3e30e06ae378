package attack

import (
	"os"
	"path/filepath"
	"time"
)

// runLog writes a per-run outcome log: one timestamped file per attack
// run, one line per logged event. With no directory configured every
// call is a no-op.
type runLog struct {
	dir  string
	name string
	f    *os.File
}

func (l *runLog) setName(name string) {
	l.name = name
}

// create opens a fresh log file for the next run, closing any previous
// one first.
func (l *runLog) create() error {
	if l.f != nil {
		l.f.Close()
		l.f = nil
	}
	if l.dir == "" {
		return nil
	}
	filename := time.Now().Format("02.01.2006 - 15:04:05 - ") + l.name + ".txt"
	f, err := os.Create(filepath.Join(l.dir, filename))
	if err != nil {
		return err
	}
	l.f = f
	return nil
}

func (l *runLog) log(message string) {
	if l.f == nil {
		return
	}
	l.f.WriteString(message + "\n")
}

func (l *runLog) close() {
	if l.f == nil {
		return
	}
	l.f.Close()
	l.f = nil
}
