package audio

import "math"

// DownsamplePCM16 converts mono float32 samples at srcRate into 16-bit signed
// PCM at dstRate by averaging each source block that maps onto one output
// sample. The output length rounds len/ratio to the nearest sample and block
// boundaries use floor(i*srcRate/dstRate), so uneven ratios distribute the
// remainder across the output instead of drifting or shaving the tail. Averaged
// samples are clamped to [-1, 1] before scaling; negative values scale by
// 0x8000 and non-negative by 0x7FFF so both extremes reach full range.
//
// When srcRate == dstRate the samples are scaled directly without averaging.
// Upsampling is not supported and returns nil.
func DownsamplePCM16(samples []float32, srcRate, dstRate int) []int16 {
	if srcRate <= 0 || dstRate <= 0 || len(samples) == 0 {
		return nil
	}
	if srcRate == dstRate {
		out := make([]int16, len(samples))
		for i, s := range samples {
			out[i] = scaleSample(s)
		}
		return out
	}
	if srcRate < dstRate {
		return nil
	}

	ratio := float64(srcRate) / float64(dstRate)
	outLen := int(math.Round(float64(len(samples)) / ratio))
	if outLen == 0 {
		return nil
	}

	out := make([]int16, outLen)
	for i := range outLen {
		start := int(float64(i) * ratio)
		end := int(float64(i+1) * ratio)
		if end > len(samples) {
			end = len(samples)
		}
		if end <= start {
			end = start + 1
		}

		var sum float64
		for _, s := range samples[start:end] {
			sum += float64(s)
		}
		out[i] = scaleSample(float32(sum / float64(end-start)))
	}
	return out
}

func scaleSample(s float32) int16 {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	if s < 0 {
		return int16(s * 0x8000)
	}
	return int16(s * 0x7FFF)
}

// EncodePCM16 serializes int16 samples as little-endian bytes, the layout the
// wire protocol and the playback sink both expect.
func EncodePCM16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// DecodePCM16 parses little-endian 16-bit PCM bytes into int16 samples.
// A trailing odd byte is ignored.
func DecodePCM16(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
	}
	return out
}
