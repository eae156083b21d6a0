// Copyright 2017-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package minilog

import (
	golog "log"
	"strings"
)

// minilogger wraps a standard library logger with a level and an optional
// set of caller-name filters. Messages from a filtered caller are dropped
// even if their level would otherwise pass.
type minilogger struct {
	log     *golog.Logger
	Level   Level
	filters []string
}

func (l *minilogger) filtered(name string) bool {
	if name == "" {
		return false
	}
	for _, f := range l.filters {
		if strings.Contains(name, f) {
			return true
		}
	}
	return false
}

func (l *minilogger) log_(level Level, name, format string, arg ...interface{}) {
	if l.filtered(name) {
		return
	}
	l.log.Printf(prefix(level, name)+format, arg...)
}

func (l *minilogger) logln_(level Level, name string, arg ...interface{}) {
	if l.filtered(name) {
		return
	}
	args := append([]interface{}{prefix(level, name)}, arg...)
	l.log.Println(args...)
}

func prefix(level Level, name string) string {
	if name == "" {
		return "[" + level.String() + "] "
	}
	return "[" + level.String() + ":" + name + "] "
}
