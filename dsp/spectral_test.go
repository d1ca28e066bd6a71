package dsp

import (
	"math"
	"testing"
)

func makeTone(n int, freq, sampleRate float64) []complex128 {
	samples := make([]complex128, n)
	for i := range samples {
		phase := 2 * math.Pi * freq * float64(i) / sampleRate
		samples[i] = complex(math.Cos(phase), math.Sin(phase))
	}
	return samples
}

func peakBin(data []float64) int {
	best := 0
	for i, v := range data {
		if v > data[best] {
			best = i
		}
	}
	return best
}

func TestAnalyzeDCCentered(t *testing.T) {
	sa := NewSpectralAnalyzer()

	samples := make([]complex128, 1024)
	for i := range samples {
		samples[i] = 1
	}
	block := IQBlock{Samples: samples, SampleRate: 48000, CenterFreq: 100000000}

	frame := sa.Analyze(block, 1024)
	if len(frame.Data) != 1024 {
		t.Fatalf("frame length = %d, want 1024", len(frame.Data))
	}
	if frame.SampleRate != 48000 || frame.CenterFreq != 100000000 {
		t.Errorf("frame metadata = (%d, %d), want (48000, 100000000)", frame.SampleRate, frame.CenterFreq)
	}

	// A DC input concentrates its energy in the center bin after the
	// zero-frequency-centering shift.
	if got := peakBin(frame.Data); got != 512 {
		t.Errorf("peak bin = %d, want 512", got)
	}
}

func TestAnalyzeToneBin(t *testing.T) {
	const (
		fftSize    = 1024
		sampleRate = 48000.0
	)
	sa := NewSpectralAnalyzer()

	// A tone at exactly fs/8 lands fftSize/8 bins above center.
	samples := makeTone(fftSize, sampleRate/8, sampleRate)
	frame := sa.Analyze(IQBlock{Samples: samples, SampleRate: 48000}, fftSize)

	want := fftSize/2 + fftSize/8
	if got := peakBin(frame.Data); got != want {
		t.Errorf("peak bin = %d, want %d", got, want)
	}
}

func TestAnalyzeAmplitudeScaling(t *testing.T) {
	const fftSize = 512
	sa := NewSpectralAnalyzer()

	samples := makeTone(fftSize, 6000, 48000)
	frame1 := sa.Analyze(IQBlock{Samples: samples, SampleRate: 48000}, fftSize)
	bin := peakBin(frame1.Data)

	// Scaling the input by k shifts the peak bin by 20*log10(k).
	for _, k := range []float64{0.5, 1, 2, 10} {
		scaled := make([]complex128, fftSize)
		for i, s := range samples {
			scaled[i] = s * complex(k, 0)
		}
		frame2 := sa.Analyze(IQBlock{Samples: scaled, SampleRate: 48000}, fftSize)

		want := 20 * math.Log10(k)
		diff := frame2.Data[bin] - frame1.Data[bin]
		if math.Abs(diff-want) > 0.01 {
			t.Errorf("k=%g: peak bin gain = %.4f dB, want %.4f", k, diff, want)
		}
	}
}

func TestAnalyzeShortBlockZeroPadded(t *testing.T) {
	sa := NewSpectralAnalyzer()

	samples := makeTone(100, 6000, 48000)
	frame := sa.Analyze(IQBlock{Samples: samples, SampleRate: 48000}, 256)

	if len(frame.Data) != 256 {
		t.Fatalf("frame length = %d, want 256", len(frame.Data))
	}
	for i, v := range frame.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("bin %d = %v", i, v)
		}
	}
}

func TestAnalyzeLongBlockTruncated(t *testing.T) {
	sa := NewSpectralAnalyzer()

	samples := makeTone(4096, 6000, 48000)
	frame := sa.Analyze(IQBlock{Samples: samples, SampleRate: 48000}, 1024)

	if len(frame.Data) != 1024 {
		t.Fatalf("frame length = %d, want 1024", len(frame.Data))
	}
}

func TestAnalyzeSizeChange(t *testing.T) {
	sa := NewSpectralAnalyzer()

	samples := makeTone(1024, 6000, 48000)
	block := IQBlock{Samples: samples, SampleRate: 48000}

	for _, size := range []int{256, 1024, 512, 1024} {
		frame := sa.Analyze(block, size)
		if len(frame.Data) != size {
			t.Errorf("size %d: frame length = %d", size, len(frame.Data))
		}
		if frame.FFTSize != size {
			t.Errorf("size %d: FFTSize = %d", size, frame.FFTSize)
		}
	}
}
