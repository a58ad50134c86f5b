package traffic

import (
	"testing"
)

func TestReconcile_NoDataDefaultsToFluid(t *testing.T) {
	if got := Reconcile(LevelNoData, LevelNoData); got != LevelFluid {
		t.Fatalf("Reconcile(0,0) = %d, want %d", got, LevelFluid)
	}
}

func TestReconcile_ActualOverridesUsual(t *testing.T) {
	cases := []struct {
		usual, actual, want Level
	}{
		{LevelFluid, LevelVeryDense, LevelVeryDense},
		{LevelNoData, LevelCongested, LevelCongested},
		{LevelDense, LevelBlocked, LevelBlocked},
		{LevelVeryFluid, LevelFluid, LevelFluid},
	}
	for _, tc := range cases {
		if got := Reconcile(tc.usual, tc.actual); got != tc.want {
			t.Errorf("Reconcile(%d,%d) = %d, want %d", tc.usual, tc.actual, got, tc.want)
		}
	}
}

func TestReconcile_UsualWinsWithoutLiveSignal(t *testing.T) {
	cases := []struct {
		usual, actual, want Level
	}{
		{LevelDense, LevelNoData, LevelDense},
		{LevelCongested, LevelCongested, LevelCongested},
		{LevelVeryFluid, LevelNoData, LevelVeryFluid},
	}
	for _, tc := range cases {
		if got := Reconcile(tc.usual, tc.actual); got != tc.want {
			t.Errorf("Reconcile(%d,%d) = %d, want %d", tc.usual, tc.actual, got, tc.want)
		}
	}
}

// Reconcile must be total and deterministic over the full level grid,
// and always land inside the valid range.
func TestReconcile_TotalOverLevelGrid(t *testing.T) {
	for usual := LevelNoData; usual <= LevelBlocked; usual++ {
		for actual := LevelNoData; actual <= LevelBlocked; actual++ {
			first := Reconcile(usual, actual)
			second := Reconcile(usual, actual)

			if first != second {
				t.Fatalf("Reconcile(%d,%d) not deterministic: %d then %d", usual, actual, first, second)
			}
			if !first.Valid() {
				t.Fatalf("Reconcile(%d,%d) = %d outside 0..6", usual, actual, first)
			}
		}
	}
}

func TestLevel_Valid(t *testing.T) {
	if Level(-1).Valid() {
		t.Error("Level(-1) should be invalid")
	}
	if Level(7).Valid() {
		t.Error("Level(7) should be invalid")
	}
	for l := LevelNoData; l <= LevelBlocked; l++ {
		if !l.Valid() {
			t.Errorf("Level(%d) should be valid", l)
		}
	}
}
