package validation

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"

	"rivermonitor/internal/apperror"
	"rivermonitor/internal/model"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test png: %v", err)
	}
	return buf.Bytes()
}

func validSubmission(t *testing.T) Submission {
	return Submission{
		Fields: map[string]string{
			FieldRiverName: "Thames",
			FieldPoints:    "[[1.5, 2.25], [3.0, -4.0]]",
			FieldDepth:     "12.3",
		},
		Files: map[string]io.Reader{
			FileImage: bytes.NewReader(pngBytes(t)),
		},
	}
}

func TestValidate_Accepts(t *testing.T) {
	accepted, err := Validate(validSubmission(t))
	if err != nil {
		t.Fatalf("expected valid submission, got %v", err)
	}

	if accepted.RiverName != "Thames" {
		t.Errorf("RiverName = %q", accepted.RiverName)
	}
	if accepted.CountryName != "" || accepted.BasinName != "" {
		t.Errorf("optional names should default to empty, got %q / %q", accepted.CountryName, accepted.BasinName)
	}
	if accepted.EstLevel != 12.3 {
		t.Errorf("EstLevel = %v, expected 12.3", accepted.EstLevel)
	}
	want := []model.Point{{X: 1.5, Y: 2.25}, {X: 3, Y: -4}}
	if len(accepted.Points) != len(want) {
		t.Fatalf("expected %d points, got %d", len(want), len(accepted.Points))
	}
	for i := range want {
		if accepted.Points[i] != want[i] {
			t.Errorf("point %d = %v, expected %v", i, accepted.Points[i], want[i])
		}
	}
	if accepted.Format != "png" || accepted.Image == nil {
		t.Errorf("expected decoded png, got format %q", accepted.Format)
	}
}

func TestValidate_OptionalFields(t *testing.T) {
	sub := validSubmission(t)
	sub.Fields[FieldCountryName] = "United Kingdom"
	sub.Fields[FieldBasinName] = "Thames Basin"

	accepted, err := Validate(sub)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if accepted.CountryName != "United Kingdom" || accepted.BasinName != "Thames Basin" {
		t.Errorf("unexpected optional fields: %q / %q", accepted.CountryName, accepted.BasinName)
	}
}

func TestValidate_EmptyPoints(t *testing.T) {
	sub := validSubmission(t)
	sub.Fields[FieldPoints] = "[]"

	accepted, err := Validate(sub)
	if err != nil {
		t.Fatalf("empty point list should be accepted, got %v", err)
	}
	if len(accepted.Points) != 0 {
		t.Errorf("expected no points, got %d", len(accepted.Points))
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Submission)
		want   apperror.Kind
	}{
		{"missing depth", func(s *Submission) { delete(s.Fields, FieldDepth) }, apperror.KindMissingField},
		{"missing river", func(s *Submission) { delete(s.Fields, FieldRiverName) }, apperror.KindMissingField},
		{"missing points", func(s *Submission) { delete(s.Fields, FieldPoints) }, apperror.KindMissingField},
		{"blank river", func(s *Submission) { s.Fields[FieldRiverName] = "  " }, apperror.KindMissingField},
		{"missing image", func(s *Submission) { delete(s.Files, FileImage) }, apperror.KindMissingFile},
		{"points not json", func(s *Submission) { s.Fields[FieldPoints] = "not json" }, apperror.KindInvalidPoints},
		{"points not array", func(s *Submission) { s.Fields[FieldPoints] = `{"x": 1}` }, apperror.KindInvalidPoints},
		{"points null", func(s *Submission) { s.Fields[FieldPoints] = "null" }, apperror.KindInvalidPoints},
		{"point with three values", func(s *Submission) { s.Fields[FieldPoints] = "[[1, 2, 3]]" }, apperror.KindInvalidPoints},
		{"point with strings", func(s *Submission) { s.Fields[FieldPoints] = `[["1", "2"]]` }, apperror.KindInvalidPoints},
		{"point with null", func(s *Submission) { s.Fields[FieldPoints] = "[[1, null]]" }, apperror.KindInvalidPoints},
		{"point all null", func(s *Submission) { s.Fields[FieldPoints] = "[[null, null]]" }, apperror.KindInvalidPoints},
		{"point overflows float32", func(s *Submission) { s.Fields[FieldPoints] = "[[1e39, 0]]" }, apperror.KindInvalidPoints},
		{"depth abc", func(s *Submission) { s.Fields[FieldDepth] = "abc" }, apperror.KindInvalidDepth},
		{"depth empty", func(s *Submission) { s.Fields[FieldDepth] = "" }, apperror.KindInvalidDepth},
		{"depth nan", func(s *Submission) { s.Fields[FieldDepth] = "NaN" }, apperror.KindInvalidDepth},
		{"image not raster", func(s *Submission) {
			s.Files[FileImage] = bytes.NewReader([]byte("GIF89a but not really"))
		}, apperror.KindInvalidImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := validSubmission(t)
			tt.mutate(&sub)

			_, err := Validate(sub)
			if err == nil {
				t.Fatal("expected rejection")
			}
			if got := apperror.KindOf(err); got != tt.want {
				t.Errorf("kind = %v, expected %v (err: %v)", got, tt.want, err)
			}
		})
	}
}

// Earlier checks win even when later fields are also broken.
func TestValidate_Order(t *testing.T) {
	sub := validSubmission(t)
	sub.Fields[FieldPoints] = "nope"
	sub.Fields[FieldDepth] = "nope"
	sub.Files[FileImage] = bytes.NewReader(nil)

	_, err := Validate(sub)
	if got := apperror.KindOf(err); got != apperror.KindInvalidPoints {
		t.Errorf("kind = %v, expected INVALID_POINTS", got)
	}

	delete(sub.Files, FileImage)
	_, err = Validate(sub)
	if got := apperror.KindOf(err); got != apperror.KindMissingFile {
		t.Errorf("kind = %v, expected MISSING_FILE", got)
	}
}

func TestParseDepth(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"12.3", 12.3},
		{" 4 ", 4},
		{"-0.5", -0.5},
		{"1e2", 100},
	}
	for _, tt := range tests {
		got, err := ParseDepth(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseDepth(%q) = %v, %v; expected %v", tt.in, got, err, tt.want)
		}
	}
	for _, bad := range []string{"inf", "-Inf", "1,5", "12m"} {
		if _, err := ParseDepth(bad); err == nil {
			t.Errorf("ParseDepth(%q) should fail", bad)
		}
	}
}
