package resultcode

import "testing"

func TestRequiresApproval(t *testing.T) {
	need := []string{TypeWhiteForfeit, TypeBlackForfeit, TypeWhiteDefault, TypeBlackDefault, TypeDoubleForfeit, TypeCancelled}
	for _, ty := range need {
		if !RequiresApproval(ty) {
			t.Fatalf("expected %q to require approval", ty)
		}
	}
	for _, ty := range []string{"", TypeStandard, TypeTimeout, TypeAdjourned, "unknown"} {
		if RequiresApproval(ty) {
			t.Fatalf("did not expect %q to require approval", ty)
		}
	}
}

func TestCompatible(t *testing.T) {
	cases := []struct {
		code, ty string
		want     bool
	}{
		{WhiteWins, "", true},
		{WhiteWins, TypeTimeout, true},
		{Draw, TypeStandard, true},
		{WhiteWins, TypeWhiteForfeit, false},
		{BlackWinsForfeit, TypeWhiteForfeit, true},
		{WhiteWinsForfeit, TypeWhiteForfeit, false},
		{DoubleForfeit, TypeDoubleForfeit, true},
		{Cancelled, TypeCancelled, true},
		{Ongoing, TypeTimeout, false},
	}
	for _, c := range cases {
		if got := Compatible(c.code, c.ty); got != c.want {
			t.Fatalf("Compatible(%q, %q) = %v, want %v", c.code, c.ty, got, c.want)
		}
	}
}

func TestNormalizeAndKnown(t *testing.T) {
	if got := Normalize("  1-0f "); got != WhiteWinsForfeit {
		t.Fatalf("Normalize = %q", got)
	}
	if got := Normalize(" adj"); got != Adjourned {
		t.Fatalf("Normalize = %q", got)
	}
	if !KnownCode(Draw) || KnownCode("2-0") {
		t.Fatalf("unexpected KnownCode result")
	}
	if !IsOngoing(" * ") {
		t.Fatalf("expected ongoing sentinel to be recognised")
	}
}

func TestPointsAndPGN(t *testing.T) {
	if w, b, ok := Points(Draw); !ok || w != 1 || b != 1 {
		t.Fatalf("draw points = %d/%d ok=%v", w, b, ok)
	}
	if _, _, ok := Points(Ongoing); ok {
		t.Fatalf("ongoing game should not score")
	}
	if got := PGNResult(BlackWinsDefault); got != BlackWins {
		t.Fatalf("PGNResult = %q", got)
	}
	if got := PGNResult(Cancelled); got != Ongoing {
		t.Fatalf("PGNResult = %q", got)
	}
}
