package pager

import "testing"

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestWindowArithmetic(t *testing.T) {
	for _, pageSize := range []int{1, 3, 7, 36, 40} {
		for n := 0; n <= 100; n++ {
			items := seq(n)
			want := 1
			if n > 0 {
				want = (n + pageSize - 1) / pageSize
			}
			for page := 1; page <= want; page++ {
				vis, eff, count := Window(items, pageSize, page)
				if count != want {
					t.Fatalf("n=%d size=%d: pageCount=%d want %d", n, pageSize, count, want)
				}
				if eff != page {
					t.Fatalf("n=%d size=%d page=%d: effective=%d", n, pageSize, page, eff)
				}
				start := (page - 1) * pageSize
				wantLen := min(pageSize, n-start)
				if wantLen < 0 {
					wantLen = 0
				}
				if len(vis) != wantLen {
					t.Fatalf("n=%d size=%d page=%d: len=%d want %d", n, pageSize, page, len(vis), wantLen)
				}
				if len(vis) > 0 && vis[0] != start {
					t.Fatalf("n=%d size=%d page=%d: first=%d want %d", n, pageSize, page, vis[0], start)
				}
			}
		}
	}
}

func TestWindowClampIsIdempotent(t *testing.T) {
	items := seq(50)
	last, lastPage, count := Window(items, 36, 2)
	for _, req := range []int{3, 4, 99} {
		vis, eff, c := Window(items, 36, req)
		if eff != lastPage || c != count || len(vis) != len(last) || vis[0] != last[0] {
			t.Fatalf("page %d: got eff=%d len=%d", req, eff, len(vis))
		}
	}
	vis, eff, _ := Window(items, 36, 0)
	if eff != 1 || vis[0] != 0 {
		t.Fatalf("page 0 should clamp to 1, got %d", eff)
	}
}

func TestWindowEmpty(t *testing.T) {
	vis, eff, count := Window([]string{}, 36, 5)
	if len(vis) != 0 || eff != 1 || count != 1 {
		t.Fatalf("empty: len=%d eff=%d count=%d", len(vis), eff, count)
	}
}

func TestWindowScenarioHundredEntries(t *testing.T) {
	items := seq(100)

	p1, eff, count := Window(items, 36, 1)
	if count != 3 || eff != 1 || len(p1) != 36 || p1[0] != 0 || p1[35] != 35 {
		t.Fatalf("page 1: count=%d eff=%d len=%d", count, eff, len(p1))
	}
	p3, eff, _ := Window(items, 36, 3)
	if eff != 3 || len(p3) != 28 || p3[0] != 72 || p3[27] != 99 {
		t.Fatalf("page 3: eff=%d len=%d", eff, len(p3))
	}
	p4, eff, _ := Window(items, 36, 4)
	if eff != 3 || len(p4) != 28 || p4[0] != 72 {
		t.Fatalf("page 4 should clamp to page 3: eff=%d len=%d", eff, len(p4))
	}
}

func TestWindowDoesNotLetCallerGrowIntoNextPage(t *testing.T) {
	items := seq(10)
	vis, _, _ := Window(items, 4, 1)
	_ = append(vis, -1)
	if items[4] != 4 {
		t.Fatalf("append through window overwrote backing array")
	}
}
