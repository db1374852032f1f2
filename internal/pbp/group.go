package pbp

import (
	"cmp"
	"slices"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// gameGroup holds the row positions of one game, sorted by play order.
type gameGroup struct {
	gameID string
	rows   []int
}

// orderKey is the sort key of a row within its game: order ascending,
// missing order last, ties broken by original row position.
type orderKey struct {
	order *int
	seq   int
}

func compareOrder(a, b orderKey) int {
	switch {
	case a.order == nil && b.order == nil:
	case a.order == nil:
		return 1
	case b.order == nil:
		return -1
	default:
		if c := cmp.Compare(*a.order, *b.order); c != 0 {
			return c
		}
	}
	return cmp.Compare(a.seq, b.seq)
}

// compareGameID orders numeric ids numerically and everything else
// lexically, numeric ids first.
func compareGameID(a, b string) int {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return cmp.Compare(na, nb)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return cmp.Compare(a, b)
	}
}

// groupByGame partitions n rows by game and sorts each game's rows by
// play order. Groups are returned in game_id order. Rows with a blank
// game_id belong to no game and are left out of every group.
func groupByGame(n int, gameID func(int) string, key func(int) orderKey) []gameGroup {
	pos := make(map[string]int)
	var groups []gameGroup
	for i := 0; i < n; i++ {
		id := gameID(i)
		if id == "" {
			continue
		}
		g, ok := pos[id]
		if !ok {
			g = len(groups)
			pos[id] = g
			groups = append(groups, gameGroup{gameID: id})
		}
		groups[g].rows = append(groups[g].rows, i)
	}
	for _, g := range groups {
		slices.SortStableFunc(g.rows, func(a, b int) int {
			return compareOrder(key(a), key(b))
		})
	}
	slices.SortFunc(groups, func(a, b gameGroup) int {
		return compareGameID(a.gameID, b.gameID)
	})
	return groups
}

// forEachGame calls fn for every group. With workers > 1 the calls run
// concurrently; fn must only touch state owned by its own group.
func forEachGame(groups []gameGroup, workers int, fn func(gi int, g gameGroup)) {
	if workers <= 1 || len(groups) < 2 {
		for gi, g := range groups {
			fn(gi, g)
		}
		return
	}
	var eg errgroup.Group
	eg.SetLimit(workers)
	for gi, g := range groups {
		eg.Go(func() error {
			fn(gi, g)
			return nil
		})
	}
	_ = eg.Wait()
}
