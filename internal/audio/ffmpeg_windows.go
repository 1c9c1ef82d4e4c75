//go:build windows

package audio

// buildFFmpegCaptureArgs omits -nostdin so FFmpeg can still be stopped with 'q'.
func buildFFmpegCaptureArgs(inputFormat, device string, p CaptureParams) []string {
	args := []string{
		"-f", inputFormat,
		"-i", device,
		"-hide_banner",
		"-loglevel", "warning",
	}
	return append(args, ffmpegOutputArgs(p)...)
}
