package detector

import (
	"errors"
	"math"
	"testing"
)

const epsilon = 1e-9

func TestHandLandmarks_Normalize(t *testing.T) {
	t.Run("wrist at origin after normalization", func(t *testing.T) {
		hand := TwoFingersLandmarks()

		normalized := hand.Normalize()
		if normalized == nil {
			t.Fatal("expected normalized hand, got nil")
		}

		if math.Abs(normalized.Points[Wrist].X) > epsilon || math.Abs(normalized.Points[Wrist].Y) > epsilon {
			t.Errorf("expected wrist at origin, got (%f, %f)", normalized.Points[Wrist].X, normalized.Points[Wrist].Y)
		}

		if normalized.Handedness != hand.Handedness {
			t.Errorf("expected handedness %s, got %s", hand.Handedness, normalized.Handedness)
		}
		if normalized.Score != hand.Score {
			t.Errorf("expected score %f, got %f", hand.Score, normalized.Score)
		}
	})

	t.Run("palm size is 1.0 after normalization", func(t *testing.T) {
		hand := OpenPalmLandmarks()

		normalized := hand.Normalize()
		if normalized == nil {
			t.Fatal("expected normalized hand, got nil")
		}

		if math.Abs(normalized.PalmSize()-1.0) > epsilon {
			t.Errorf("expected palm size 1.0, got %f", normalized.PalmSize())
		}
	})

	t.Run("nil hand returns nil", func(t *testing.T) {
		var hand *HandLandmarks
		if hand.Normalize() != nil {
			t.Error("expected nil result for nil input")
		}
	})

	t.Run("degenerate palm returns nil", func(t *testing.T) {
		hand := HandLandmarks{}
		hand.Points[Wrist] = Point3D{X: 0.4, Y: 0.4}
		hand.Points[MiddleMCP] = Point3D{X: 0.4, Y: 0.4}

		if hand.Normalize() != nil {
			t.Error("expected nil result for zero palm size")
		}
	})

	t.Run("NaN landmark returns nil", func(t *testing.T) {
		hand := OkHandLandmarks()
		hand.Points[RingTip].Y = math.NaN()

		if hand.Normalize() != nil {
			t.Error("expected nil result for malformed hand")
		}
	})
}

func TestHandLandmarks_Valid(t *testing.T) {
	tests := []struct {
		name string
		hand func() *HandLandmarks
		want bool
	}{
		{"fixture", func() *HandLandmarks { h := FistLandmarks(); return &h }, true},
		{"nil", func() *HandLandmarks { return nil }, false},
		{"infinite x", func() *HandLandmarks {
			h := FistLandmarks()
			h.Points[ThumbTip].X = math.Inf(1)
			return &h
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.hand().Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseResponse(t *testing.T) {
	t.Run("full hand", func(t *testing.T) {
		line := `{"hands":[{"handedness":"Left","score":0.9,"points":[` + repeatPoints(NumLandmarks) + `]}]}`

		hands, err := parseResponse([]byte(line))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(hands) != 1 {
			t.Fatalf("expected 1 hand, got %d", len(hands))
		}
		if !hands[0].Valid() {
			t.Error("expected full hand to be valid")
		}
		if hands[0].Handedness != "Left" {
			t.Errorf("expected handedness Left, got %s", hands[0].Handedness)
		}
	})

	t.Run("partial hand is padded and invalid", func(t *testing.T) {
		line := `{"hands":[{"handedness":"Right","score":0.8,"points":[` + repeatPoints(5) + `]}]}`

		hands, err := parseResponse([]byte(line))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if hands[0].Valid() {
			t.Error("expected partial hand to be invalid")
		}
		if !math.IsNaN(hands[0].Points[PinkyTip].X) {
			t.Errorf("expected missing point to be NaN, got %f", hands[0].Points[PinkyTip].X)
		}
	})

	t.Run("service error", func(t *testing.T) {
		if _, err := parseResponse([]byte(`{"error":"model not loaded"}`)); err == nil {
			t.Error("expected error from service error field")
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, err := parseResponse([]byte(`not json`)); err == nil {
			t.Error("expected parse error")
		}
	})
}

func repeatPoints(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ","
		}
		s += `{"x":0.5,"y":0.5,"z":0}`
	}
	return s
}

func TestMockDetector(t *testing.T) {
	t.Run("returns empty hands by default", func(t *testing.T) {
		mock := NewMockDetector()

		hands, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if hands != nil {
			t.Errorf("expected nil hands, got %v", hands)
		}
	})

	t.Run("returns configured hands", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetHands([]HandLandmarks{TwoFingersLandmarks(), OkHandLandmarks()})

		hands, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if len(hands) != 2 {
			t.Errorf("expected 2 hands, got %d", len(hands))
		}
		if mock.Calls() != 1 {
			t.Errorf("expected 1 call, got %d", mock.Calls())
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()

		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		hands, err := mock.Detect(nil)

		if err != expectedErr {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if hands != nil {
			t.Errorf("expected nil hands when error is set, got %v", hands)
		}
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = (*MockDetector)(nil)
		var _ Detector = (*MediaPipeDetector)(nil)
	})
}

func TestFixtures_PalmSize(t *testing.T) {
	fixtures := map[string]HandLandmarks{
		"two fingers": TwoFingersLandmarks(),
		"ok hand":     OkHandLandmarks(),
		"open palm":   OpenPalmLandmarks(),
		"fist":        FistLandmarks(),
	}

	for name, hand := range fixtures {
		t.Run(name, func(t *testing.T) {
			if math.Abs(hand.PalmSize()-0.15) > 1e-9 {
				t.Errorf("expected palm size 0.15, got %f", hand.PalmSize())
			}
			scaled := hand.Scaled(2)
			if math.Abs(scaled.PalmSize()-0.30) > 1e-9 {
				t.Errorf("expected scaled palm size 0.30, got %f", scaled.PalmSize())
			}
		})
	}
}
