package styles

import (
	"archive/zip"
	"bytes"
	"context"
	"image/jpeg"
	"io"
	"testing"

	"golang.org/x/text/language"

	"studio/internal/domain"
)

func TestExportPacksEnvelopeAndThumbnails(t *testing.T) {
	lib := newTestLibrary(NewMemoryStore(0), &fakeAnalyzer{result: domain.DirectorResult{Title: "Dusk", Analysis: "violet haze", Prompt: "p"}})
	ctx := context.Background()
	if _, err := lib.ImportFromImage(ctx, language.English, pngImage(t, "dusk.png")); err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, err := lib.ImportFromImage(ctx, language.English, opaqueImage(t, "raw.heic")); err != nil {
		t.Fatalf("import without thumbnail: %v", err)
	}

	raw, err := lib.Export(ctx)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	files := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		files[f.Name], _ = io.ReadAll(rc)
		rc.Close()
	}
	if len(files) != 2 {
		t.Fatalf("entries = %d, want styles.json plus one thumbnail", len(files))
	}

	styles, err := decodeCollection(files["styles.json"])
	if err != nil || len(styles) != 2 {
		t.Fatalf("styles.json = %v, %v", styles, err)
	}
	thumb, ok := files["thumbnails/style-1.jpg"]
	if !ok {
		t.Fatalf("missing thumbnail for style-1: %v", files)
	}
	if _, err := jpeg.Decode(bytes.NewReader(thumb)); err != nil {
		t.Fatalf("thumbnail is not a jpeg: %v", err)
	}
}
