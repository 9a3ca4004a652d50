package dash

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// rawManifest approximates what ffmpeg's dash muxer writes before the
// compatibility patch: no minBufferTime/profiles, no mimeType, no
// codecs, and a SegmentTemplate with its own timescale and children.
const rawManifest = `<?xml version="1.0" encoding="utf-8"?>
<MPD xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns="urn:mpeg:dash:schema:mpd:2011" xmlns:xlink="http://www.w3.org/1999/xlink" xsi:schemaLocation="urn:mpeg:DASH:schema:MPD:2011 DASH-MPD.xsd" type="static" mediaPresentationDuration="PT184.6S">
	<Period id="0" start="PT0.0S">
		<AdaptationSet id="0" segmentAlignment="true">
			<Representation id="0" bandwidth="80000">
				<SegmentTemplate timescale="1000000" duration="4000000" initialization="init-stream$RepresentationID$.m4s" media="chunk-stream$RepresentationID$-$Number%05d$.m4s" startNumber="1">
					<SegmentTimeline>
						<S t="0" d="4000000" r="45"/>
					</SegmentTimeline>
				</SegmentTemplate>
			</Representation>
		</AdaptationSet>
	</Period>
</MPD>
`

func TestPatchManifestBytes_addsMissingFields(t *testing.T) {
	patched, err := patchManifestBytes([]byte(rawManifest), 4)
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	out := string(patched)

	for _, want := range []string{
		`minBufferTime="PT4S"`,
		`profiles="urn:mpeg:dash:profile:isoff-on-demand:2011"`,
		`mimeType="audio/mp4"`,
		`contentType="audio"`,
		`subsegmentAlignment="true"`,
		`codecs="opus"`,
		`<SegmentTemplate initialization="init.mp4" media="chunk-$Number$.m4s" startNumber="1" timescale="1000" duration="4000"/>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("patched manifest missing %s\n%s", want, out)
		}
	}

	if strings.Contains(out, "SegmentTimeline") {
		t.Error("SegmentTemplate children must be discarded")
	}
	// Pre-existing root attributes survive.
	if !strings.Contains(out, `mediaPresentationDuration="PT184.6S"`) {
		t.Error("existing attributes were lost")
	}
}

func TestPatchManifestBytes_idempotent(t *testing.T) {
	once, err := patchManifestBytes([]byte(rawManifest), 4)
	if err != nil {
		t.Fatalf("first patch: %v", err)
	}
	twice, err := patchManifestBytes(once, 4)
	if err != nil {
		t.Fatalf("second patch: %v", err)
	}
	if !bytes.Equal(once, twice) {
		t.Errorf("patch not idempotent:\n--- first\n%s\n--- second\n%s", once, twice)
	}
}

func TestPatchManifestBytes_compliantFieldsUntouched(t *testing.T) {
	once, err := patchManifestBytes([]byte(rawManifest), 4)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := patchManifestBytes(once, 4)
	if err != nil {
		t.Fatal(err)
	}

	// The presence checks must not duplicate attributes.
	for _, attr := range []string{"minBufferTime", "mimeType", "codecs"} {
		if n := strings.Count(string(twice), attr+`="`); n != 1 {
			t.Errorf("attribute %s appears %d times after re-patch", attr, n)
		}
	}
}

func TestPatchManifestBytes_segmentDurationScaled(t *testing.T) {
	patched, err := patchManifestBytes([]byte(rawManifest), 10)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(patched), `duration="10000"`) {
		t.Errorf("expected duration scaled to timescale:\n%s", patched)
	}
	if !strings.Contains(string(patched), `minBufferTime="PT10S"`) {
		t.Errorf("expected buffer time to follow segment duration:\n%s", patched)
	}
}

func TestPatchManifestBytes_malformedInput(t *testing.T) {
	if _, err := patchManifestBytes([]byte("<MPD><unclosed"), 4); err == nil {
		t.Error("expected error for malformed manifest")
	}
	if _, err := patchManifestBytes([]byte("   "), 4); err == nil {
		t.Error("expected error for empty document")
	}
}

func TestPatchManifest_missingFileIsNoOp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.mpd")
	if err := PatchManifest(path, 4); err != nil {
		t.Errorf("missing manifest should be a no-op, got %v", err)
	}
}

func TestPatchManifest_rewritesFileInPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.mpd")
	if err := os.WriteFile(path, []byte(rawManifest), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := PatchManifest(path, 4); err != nil {
		t.Fatalf("PatchManifest: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `codecs="opus"`) {
		t.Errorf("file not patched:\n%s", data)
	}
}
