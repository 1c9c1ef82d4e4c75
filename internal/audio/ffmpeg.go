//go:build !linux && !windows

package audio

func buildFFmpegCaptureArgs(inputFormat, device string, p CaptureParams) []string {
	args := []string{
		"-f", inputFormat,
		"-i", device,
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
	}
	return append(args, ffmpegOutputArgs(p)...)
}
