package game

import "testing"

func TestBodyLanguageStartsUnknown(t *testing.T) {
	t.Parallel()

	b := NewBodyLanguage()
	snap := b.Snapshot()
	if snap.EyeContact != EyeUnknown || snap.Posture != PostureUnknown || snap.Demeanor != DemeanorUnknown {
		t.Errorf("fresh snapshot = %+v", snap)
	}
	if snap.Analyzing {
		t.Error("fresh body language should not be analyzing")
	}
}

func TestBodyLanguageSetClearsAnalyzing(t *testing.T) {
	t.Parallel()

	b := NewBodyLanguage()
	b.BeginAnalysis()
	if !b.Snapshot().Analyzing {
		t.Fatal("expected analyzing after BeginAnalysis")
	}
	b.SetEyeContact(EyeWeak, "eyes darting")
	snap := b.Snapshot()
	if snap.Analyzing {
		t.Error("Set should clear analyzing")
	}
	if snap.EyeContact != EyeWeak || snap.LastObservation != "eyes darting" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestBodyLanguageEndAnalysisKeepsReads(t *testing.T) {
	t.Parallel()

	b := NewBodyLanguage()
	b.SetPosture(PostureGood, "shoulders back")
	b.BeginAnalysis()
	b.EndAnalysis()
	snap := b.Snapshot()
	if snap.Analyzing {
		t.Error("expected analyzing cleared")
	}
	if snap.Posture != PostureGood {
		t.Errorf("posture = %q, want good", snap.Posture)
	}
}

func TestBodyLanguageReset(t *testing.T) {
	t.Parallel()

	b := NewBodyLanguage()
	b.SetEyeContact(EyeStrong, "steady gaze")
	b.SetDemeanor(DemeanorNervous, "sweating")
	b.Reset()
	snap := b.Snapshot()
	if snap.EyeContact != EyeUnknown || snap.Demeanor != DemeanorUnknown || snap.LastObservation != "" {
		t.Errorf("post-reset snapshot = %+v", snap)
	}
}
