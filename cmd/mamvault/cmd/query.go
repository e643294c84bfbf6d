package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mamvault/mamvault/internal/archive"
	"github.com/mamvault/mamvault/internal/jid"
	"github.com/mamvault/mamvault/internal/mam"
	"github.com/mamvault/mamvault/internal/store"
)

var queryFlags struct {
	room       bool
	with       string
	start      string
	end        string
	text       string
	after      string
	before     string
	max        int
	roomMode   string
	privileged bool
}

var queryCmd = &cobra.Command{
	Use:   "query <owner-jid>",
	Short: "Query an archive from the command line",
	Long: `Query an archive and print one page of matching messages.

The owner is the bare JID of the archive: a user for personal archives,
a room for room archives (pass --room). Page through long histories
with --after and the token printed at the end of each page.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	f := queryCmd.Flags()
	f.BoolVar(&queryFlags.room, "room", false, "owner is a room archive")
	f.StringVar(&queryFlags.with, "with", "", "counterpart filter (bare or full JID)")
	f.StringVar(&queryFlags.start, "start", "", "only messages on or after this time (RFC 3339 or YYYY-MM-DD)")
	f.StringVar(&queryFlags.end, "end", "", "only messages before this time (RFC 3339 or YYYY-MM-DD)")
	f.StringVar(&queryFlags.text, "text", "", "full-text body filter")
	f.StringVar(&queryFlags.after, "after", "", "paging cursor: messages after this token")
	f.StringVar(&queryFlags.before, "before", "", "paging cursor: page ending before this token")
	f.IntVar(&queryFlags.max, "max", -1, "page size (default from config)")
	f.StringVar(&queryFlags.roomMode, "room-mode", "semi-anonymous", "room anonymity mode: non-anonymous, semi-anonymous, fully-anonymous")
	f.BoolVar(&queryFlags.privileged, "privileged", false, "query with room owner/moderator privilege")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	owner, err := jid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid owner: %w", err)
	}

	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()
	if err := st.InitSchema(); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	c := archive.Criteria{
		Owner:       owner.Bare(),
		RoomArchive: queryFlags.room,
		Text:        queryFlags.text,
		Paging: archive.PageRequest{
			After:  queryFlags.after,
			Before: queryFlags.before,
		},
	}
	if queryFlags.max >= 0 {
		c.Paging.Max = &queryFlags.max
	}
	if queryFlags.privileged {
		c.Privilege = archive.Privileged
	}
	if queryFlags.with != "" {
		if c.With, err = jid.Parse(queryFlags.with); err != nil {
			return fmt.Errorf("invalid --with: %w", err)
		}
	}
	if queryFlags.room {
		switch queryFlags.roomMode {
		case "non-anonymous":
			c.RoomMode = archive.NonAnonymous
		case "semi-anonymous":
			c.RoomMode = archive.SemiAnonymous
		case "fully-anonymous":
			c.RoomMode = archive.FullyAnonymous
		default:
			return fmt.Errorf("invalid --room-mode %q", queryFlags.roomMode)
		}
	}
	if c.Start, err = parseTimeFlag(queryFlags.start, "--start"); err != nil {
		return err
	}
	if c.End, err = parseTimeFlag(queryFlags.end, "--end"); err != nil {
		return err
	}

	engine := mam.NewEngine(st, logger, mam.Options{
		DefaultPageSize: cfg.Archive.DefaultPageSize,
		MaxPageSize:     cfg.Archive.MaxPageSize,
	})
	page, err := engine.Query(cmd.Context(), c)
	if err != nil {
		return err
	}

	for i, m := range page.Messages {
		line := fmt.Sprintf("%s  %s", m.Time.UTC().Format(time.RFC3339), sender(m, page.Disclosed[i]))
		fmt.Printf("%s\n    %s\n", line, m.Body)
	}
	fmt.Printf("\n%d of %d message(s)", len(page.Messages), page.Total)
	if page.Complete {
		fmt.Println(", end of results")
	} else if page.Last != "" {
		fmt.Printf("; continue with --after %s\n", page.Last)
	} else {
		fmt.Println()
	}
	return nil
}

// sender renders the most precise sender identity the caller may see.
func sender(m archive.Message, disclosed bool) string {
	switch {
	case m.InRoom() && disclosed && !m.RealJID.IsZero():
		return fmt.Sprintf("%s (%s)", m.Nick, m.RealJID)
	case m.InRoom():
		return m.Nick
	case m.Direction == archive.DirectionSent:
		return "me"
	default:
		return m.Peer.String()
	}
}

func parseTimeFlag(v, name string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid %s %q: expected RFC 3339 or YYYY-MM-DD", name, v)
}
