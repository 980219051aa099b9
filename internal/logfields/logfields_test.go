package logfields

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

// Key drift would break log ingestion queries.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"ExecutionID", KeyExecutionID, "e-1", ExecutionID("e-1")},
		{"Pipeline", KeyPipeline, "dt-digital-twin", Pipeline("dt-digital-twin")},
		{"Variant", KeyVariant, "manifest", Variant("manifest")},
		{"VariantType", KeyVariantType, "digitaltwin", VariantType("digitaltwin")},
		{"Branch", KeyBranch, "release/x", Branch("release/x")},
		{"Repository", KeyRepo, "manifest-demo", Repository("manifest-demo")},
		{"Commit", KeyCommit, "abc", Commit("abc")},
		{"CommandID", KeyCommandID, "c-1", CommandID("c-1")},
		{"InstanceID", KeyInstanceID, "i-1", InstanceID("i-1")},
		{"Phase", KeyPhase, "run_command", Phase("run_command")},
		{"Queue", KeyQueue, "q", Queue("q")},
		{"DedupID", KeyDedupID, "a/b/c", DedupID("a/b/c")},
		{"ObjectKey", KeyObjectKey, "k", ObjectKey("k")},
		{"Recipient", KeyRecipient, "a@b", Recipient("a@b")},
		{"Error", KeyError, "boom", Error(errors.New("boom"))},
		{"NilError", KeyError, "", Error(nil)},
	}
	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if got := tc.attr.Value.String(); got != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %v", tc.name, tc.attrVal, got)
		}
	}
}

func TestDuration(t *testing.T) {
	a := Duration(1500 * time.Millisecond)
	if a.Key != KeyDurationMS || a.Value.Float64() != 1500 {
		t.Fatalf("unexpected attr %v", a)
	}
}
