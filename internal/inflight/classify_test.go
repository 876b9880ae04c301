package inflight

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kartikbazzad/docdb-inflight/internal/vclock"
)

func TestClassifyTable(t *testing.T) {
	ancestor := vclock.New().Next("a")
	descendant := ancestor.Next("b")
	concurrentClock := vclock.New().Next("c")

	cases := []struct {
		name         string
		source       Source
		currentKnown bool
		current      vclock.Clock
		supplied     vclock.Clock
		want         Status
	}{
		{"client no current", Client, false, vclock.Clock{}, ancestor, StatusWrite},
		{"client same", Client, true, ancestor, ancestor, StatusWrite},
		{"client descends", Client, true, ancestor, descendant, StatusWrite},
		{"client behind", Client, true, descendant, ancestor, StatusConflict},
		{"client concurrent", Client, true, ancestor, concurrentClock, StatusConflict},
		{"replication no current", Replication, false, vclock.Clock{}, ancestor, StatusWrite},
		{"replication same", Replication, true, ancestor, ancestor, StatusSkip},
		{"replication ahead", Replication, true, ancestor, descendant, StatusWrite},
		{"replication behind", Replication, true, descendant, ancestor, StatusSkip},
		{"replication concurrent", Replication, true, ancestor, concurrentClock, StatusConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.source, tc.currentKnown, tc.current, tc.supplied)
			require.Equal(t, tc.want, got)
		})
	}
}
