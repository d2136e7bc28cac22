package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"tidbyt.dev/timetable/session"
	"tidbyt.dev/timetable/state"
	"tidbyt.dev/timetable/storage"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspects and clears persisted sessions",
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists stored session slots",
	Args:  cobra.NoArgs,
	RunE:  withStorage(listSessions),
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear [slot...]",
	Short: "Deletes session slots, the default one if none are named",
	RunE:  withStorage(clearSessions),
}

func init() {
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionClearCmd)
	rootCmd.AddCommand(sessionCmd)
}

func withStorage(fn func(io.Writer, storage.Storage, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := openStorage()
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer s.Close()
		return fn(os.Stdout, s, args)
	}
}

// One line per slot. Slots holding a valid session also show what's
// selected.
func listSessions(w io.Writer, s storage.Storage, _ []string) error {
	slots, err := s.ListSlots()
	if err != nil {
		return err
	}

	for _, md := range slots {
		line := fmt.Sprintf("%s %d bytes, updated %s", md.Slot, md.Size, md.UpdatedAt.UTC().Format(time.RFC3339))

		blob, err := s.Load(md.Slot)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if sess, err := session.Decode(blob); err != nil {
			line += ": unreadable"
		} else {
			line += fmt.Sprintf(": %d stops, reference %q, date %s",
				len(sess.Selection.Checked), sess.Selection.Reference, sess.Date)
		}

		fmt.Fprintln(w, line)
	}
	return nil
}

func clearSessions(w io.Writer, s storage.Storage, slots []string) error {
	if len(slots) == 0 {
		slots = []string{state.DefaultSlot}
	}
	for _, slot := range slots {
		if err := s.Delete(slot); err != nil {
			return err
		}
		fmt.Fprintf(w, "cleared %s\n", slot)
	}
	return nil
}
