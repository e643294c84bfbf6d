package mam

import (
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mamvault/mamvault/internal/archive"
)

// maxOf builds an explicit page size cap.
func maxOf(n int) *int {
	return &n
}

// runPager feeds messages with the given ids through a fresh paginator
// and returns the resulting page.
func runPager(t *testing.T, req archive.PageRequest, c archive.Criteria, ids ...int64) archive.ResultPage {
	t.Helper()
	c.Paging = req
	p := newPaginator(req, c, 50, 0)
	for _, id := range ids {
		p.feed(archive.Message{ID: id, StableID: "s" + strconv.FormatInt(id, 10)})
	}
	return p.page()
}

func pageIDs(rp archive.ResultPage) []int64 {
	var ids []int64
	for _, m := range rp.Messages {
		ids = append(ids, m.ID)
	}
	return ids
}

func TestPaginatorForward(t *testing.T) {
	tests := []struct {
		name     string
		req      archive.PageRequest
		ids      []int64
		want     []int64
		first    string
		last     string
		total    int
		complete bool
	}{
		{
			name:     "first page",
			req:      archive.PageRequest{Max: maxOf(2)},
			ids:      []int64{1, 2, 3, 4, 5},
			want:     []int64{1, 2},
			first:    "1", last: "2",
			total:    5,
			complete: false,
		},
		{
			name:     "middle page after token",
			req:      archive.PageRequest{Max: maxOf(2), After: "2"},
			ids:      []int64{1, 2, 3, 4, 5},
			want:     []int64{3, 4},
			first:    "3", last: "4",
			total:    5,
			complete: false,
		},
		{
			name:     "final short page",
			req:      archive.PageRequest{Max: maxOf(2), After: "4"},
			ids:      []int64{1, 2, 3, 4, 5},
			want:     []int64{5},
			first:    "5", last: "5",
			total:    5,
			complete: true,
		},
		{
			name:     "exact fit is complete",
			req:      archive.PageRequest{Max: maxOf(3), After: "2"},
			ids:      []int64{1, 2, 3, 4, 5},
			want:     []int64{3, 4, 5},
			first:    "3", last: "5",
			total:    5,
			complete: true,
		},
		{
			name:     "unknown after token means no bound",
			req:      archive.PageRequest{Max: maxOf(2), After: "999"},
			ids:      []int64{1, 2, 3},
			want:     []int64{1, 2},
			first:    "1", last: "2",
			total:    3,
			complete: false,
		},
		{
			name:     "after last item yields empty complete page",
			req:      archive.PageRequest{Max: maxOf(2), After: "3"},
			ids:      []int64{1, 2, 3},
			want:     nil,
			total:    3,
			complete: true,
		},
		{
			name:     "bounded range between after and before",
			req:      archive.PageRequest{Max: maxOf(10), After: "1", Before: "5"},
			ids:      []int64{1, 2, 3, 4, 5},
			want:     []int64{2, 3, 4},
			first:    "2", last: "4",
			total:    5,
			complete: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rp := runPager(t, tt.req, archive.Criteria{}, tt.ids...)
			if diff := cmp.Diff(tt.want, pageIDs(rp)); diff != "" {
				t.Errorf("page ids mismatch (-want +got):\n%s", diff)
			}
			if rp.First != tt.first || rp.Last != tt.last {
				t.Errorf("tokens = (%q, %q), want (%q, %q)", rp.First, rp.Last, tt.first, tt.last)
			}
			if rp.Total != tt.total {
				t.Errorf("Total = %d, want %d", rp.Total, tt.total)
			}
			if rp.Complete != tt.complete {
				t.Errorf("Complete = %v, want %v", rp.Complete, tt.complete)
			}
		})
	}
}

func TestPaginatorBackward(t *testing.T) {
	tests := []struct {
		name     string
		req      archive.PageRequest
		ids      []int64
		want     []int64
		total    int
		complete bool
	}{
		{
			name:     "page before token keeps ascending order",
			req:      archive.PageRequest{Max: maxOf(2), Before: "5"},
			ids:      []int64{1, 2, 3, 4, 5},
			want:     []int64{3, 4},
			total:    5,
			complete: false,
		},
		{
			name:     "reaches the chronological start",
			req:      archive.PageRequest{Max: maxOf(2), Before: "3"},
			ids:      []int64{1, 2, 3, 4, 5},
			want:     []int64{1, 2},
			total:    5,
			complete: true,
		},
		{
			name:     "unknown before token anchors at the end",
			req:      archive.PageRequest{Max: maxOf(2), Before: "999"},
			ids:      []int64{1, 2, 3, 4, 5},
			want:     []int64{4, 5},
			total:    5,
			complete: false,
		},
		{
			name:     "before first item yields empty complete page",
			req:      archive.PageRequest{Max: maxOf(2), Before: "1"},
			ids:      []int64{1, 2, 3},
			want:     nil,
			total:    3,
			complete: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rp := runPager(t, tt.req, archive.Criteria{}, tt.ids...)
			if diff := cmp.Diff(tt.want, pageIDs(rp)); diff != "" {
				t.Errorf("page ids mismatch (-want +got):\n%s", diff)
			}
			if rp.Total != tt.total {
				t.Errorf("Total = %d, want %d", rp.Total, tt.total)
			}
			if rp.Complete != tt.complete {
				t.Errorf("Complete = %v, want %v", rp.Complete, tt.complete)
			}
			for i := 1; i < len(rp.Messages); i++ {
				if rp.Messages[i].ID <= rp.Messages[i-1].ID {
					t.Errorf("page content not ascending at index %d", i)
				}
			}
		})
	}
}

func TestPaginatorMaxZero(t *testing.T) {
	rp := runPager(t, archive.PageRequest{Max: maxOf(0)}, archive.Criteria{}, 1, 2, 3)
	if len(rp.Messages) != 0 {
		t.Fatalf("got %d messages, want none", len(rp.Messages))
	}
	if rp.Total != 3 {
		t.Errorf("Total = %d, want 3", rp.Total)
	}
	if rp.Complete {
		t.Error("Complete = true for a non-empty matching set")
	}
	if rp.First != "" || rp.Last != "" {
		t.Errorf("tokens = (%q, %q), want empty", rp.First, rp.Last)
	}

	rp = runPager(t, archive.PageRequest{Max: maxOf(0)}, archive.Criteria{})
	if !rp.Complete || rp.Total != 0 {
		t.Errorf("empty set: Complete=%v Total=%d, want true/0", rp.Complete, rp.Total)
	}
}

func TestPaginatorEmptySet(t *testing.T) {
	rp := runPager(t, archive.PageRequest{Max: maxOf(10)}, archive.Criteria{})
	if len(rp.Messages) != 0 || !rp.Complete || rp.Total != 0 {
		t.Errorf("got %d messages, Complete=%v, Total=%d; want empty complete page",
			len(rp.Messages), rp.Complete, rp.Total)
	}
}

func TestPaginatorIndexOffset(t *testing.T) {
	idx := 3
	rp := runPager(t, archive.PageRequest{Max: maxOf(2), Index: &idx}, archive.Criteria{}, 1, 2, 3, 4, 5)
	if diff := cmp.Diff([]int64{4, 5}, pageIDs(rp)); diff != "" {
		t.Errorf("page ids mismatch (-want +got):\n%s", diff)
	}
	if !rp.Complete {
		t.Error("Complete = false, want true")
	}

	// After wins over Index when both are set.
	rp = runPager(t, archive.PageRequest{Max: maxOf(2), After: "1", Index: &idx}, archive.Criteria{}, 1, 2, 3, 4, 5)
	if diff := cmp.Diff([]int64{2, 3}, pageIDs(rp)); diff != "" {
		t.Errorf("page ids mismatch (-want +got):\n%s", diff)
	}
}

func TestPaginatorStableIDTokens(t *testing.T) {
	c := archive.Criteria{UseStableID: true}
	rp := runPager(t, archive.PageRequest{Max: maxOf(2), After: "s2"}, c, 1, 2, 3, 4, 5)
	if diff := cmp.Diff([]int64{3, 4}, pageIDs(rp)); diff != "" {
		t.Errorf("page ids mismatch (-want +got):\n%s", diff)
	}
	if rp.First != "s3" || rp.Last != "s4" {
		t.Errorf("tokens = (%q, %q), want (s3, s4)", rp.First, rp.Last)
	}
}

func TestPaginatorDefaultAndCap(t *testing.T) {
	// A zero-value request carries no explicit cap and takes the default.
	c := archive.Criteria{}
	p := newPaginator(c.Paging, c, 3, 0)
	for id := int64(1); id <= 10; id++ {
		p.feed(archive.Message{ID: id})
	}
	if rp := p.page(); len(rp.Messages) != 3 {
		t.Errorf("unset page size: got %d messages, want 3", len(rp.Messages))
	}

	c = archive.Criteria{Paging: archive.PageRequest{Max: maxOf(-1)}}
	p = newPaginator(c.Paging, c, 3, 0)
	for id := int64(1); id <= 10; id++ {
		p.feed(archive.Message{ID: id})
	}
	if rp := p.page(); len(rp.Messages) != 3 {
		t.Errorf("negative page size: got %d messages, want 3", len(rp.Messages))
	}

	c = archive.Criteria{Paging: archive.PageRequest{Max: maxOf(100)}}
	p = newPaginator(c.Paging, c, 3, 5)
	for id := int64(1); id <= 10; id++ {
		p.feed(archive.Message{ID: id})
	}
	if rp := p.page(); len(rp.Messages) != 5 {
		t.Errorf("capped page size: got %d messages, want 5", len(rp.Messages))
	}
}

// Walking forward page by page must reproduce the full matching set in
// order, with Complete true exactly on the last page.
func TestPaginatorForwardWalkCoversSet(t *testing.T) {
	ids := []int64{1, 2, 3, 4, 5, 6, 7}

	var got []int64
	after := ""
	for steps := 0; ; steps++ {
		if steps > len(ids) {
			t.Fatal("paging did not terminate")
		}
		rp := runPager(t, archive.PageRequest{Max: maxOf(3), After: after}, archive.Criteria{}, ids...)
		got = append(got, pageIDs(rp)...)
		if rp.Complete {
			break
		}
		after = rp.Last
	}
	if diff := cmp.Diff(ids, got); diff != "" {
		t.Errorf("forward walk mismatch (-want +got):\n%s", diff)
	}
}

// Walking backward from the end must also reproduce the full set.
func TestPaginatorBackwardWalkCoversSet(t *testing.T) {
	ids := []int64{1, 2, 3, 4, 5, 6, 7}

	var got []int64
	before := "999" // unknown token: start from the end
	for steps := 0; ; steps++ {
		if steps > len(ids) {
			t.Fatal("paging did not terminate")
		}
		rp := runPager(t, archive.PageRequest{Max: maxOf(3), Before: before}, archive.Criteria{}, ids...)
		got = append(pageIDs(rp), got...)
		if rp.Complete {
			break
		}
		before = rp.First
	}
	if diff := cmp.Diff(ids, got); diff != "" {
		t.Errorf("backward walk mismatch (-want +got):\n%s", diff)
	}
}
