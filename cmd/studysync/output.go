package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"

	"github.com/fkhayef/studysync/internal/livestate"
)

const timeLayout = "Mon Jan 2 15:04"

func newTable(w io.Writer, header ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	return tw
}

func parseID(arg, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s id %q", what, arg)
	}
	return id, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// describe turns view failures into one line for the terminal
func describe(err error) string {
	var (
		vf *livestate.ValidationFailure
		wf *livestate.WriteFailure
		pf *livestate.PartialFailure
		sf *livestate.SubscriptionFailure
	)
	switch {
	case errors.As(err, &vf):
		return vf.Error()
	case errors.As(err, &pf):
		return fmt.Sprintf("%s: only partly done (%v)", pf.Op, errors.Join(pf.Errs...))
	case errors.As(err, &wf) && wf.RolledBack:
		return fmt.Sprintf("%s failed and was undone: %v", wf.Op, wf.Err)
	case errors.As(err, &sf):
		return "live updates unavailable: " + sf.Err.Error()
	default:
		return err.Error()
	}
}
