package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// FFmpegService
// Transcoding between delivery formats and the edit-friendly ProRes 422
// intermediate, plus frame extraction for analysis and ffprobe duration
// probing. All commands run through exec.CommandContext so cancellation
// propagates.
// ---------------------------------------------------------------------------

// ProRes profile numbers as understood by prores_ks:
// 0=proxy, 1=lt, 2=standard, 3=hq.
const (
	ProResProfileProxy    = 0
	ProResProfileLT       = 1
	ProResProfileStandard = 2
	ProResProfileHQ       = 3
)

type FFmpegService struct {
	tempDir       string
	proresProfile int
}

// NewFFmpegService creates the transcoder. tempDir is created if missing;
// proresProfile selects the prores_ks profile (0-3).
func NewFFmpegService(tempDir string, proresProfile int) *FFmpegService {
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		panic(fmt.Sprintf("failed to create temp dir: %v", err))
	}
	if proresProfile < ProResProfileProxy || proresProfile > ProResProfileHQ {
		proresProfile = ProResProfileStandard
	}
	return &FFmpegService{
		tempDir:       tempDir,
		proresProfile: proresProfile,
	}
}

// ConvertToProRes transcodes a delivery-format video (H.264/H.265 MP4) into
// a ProRes 422 MOV suitable for NLE timelines. Audio, when present, is
// rewritten as uncompressed PCM.
func (s *FFmpegService) ConvertToProRes(ctx context.Context, inputPath, outputPath string) error {
	log.Printf("[FFmpeg] Converting to ProRes (profile=%d): %s -> %s", s.proresProfile, inputPath, outputPath)

	args := []string{
		"-i", inputPath,
		"-c:v", "prores_ks",
		"-profile:v", strconv.Itoa(s.proresProfile),
		"-vendor", "apl0", // Apple vendor tag so FCP treats the file as camera-native
		"-pix_fmt", "yuv422p10le",
		"-c:a", "pcm_s16le",
		"-y",
		outputPath,
	}

	if err := s.run(ctx, "ffmpeg", args...); err != nil {
		return fmt.Errorf("ffmpeg prores conversion failed: %w", err)
	}
	return nil
}

// ConvertToH264 transcodes a video into an H.264 MP4. Lip-sync backends
// accept MP4 input, so ProRes intermediates pass through here first.
func (s *FFmpegService) ConvertToH264(ctx context.Context, inputPath, outputPath string) error {
	log.Printf("[FFmpeg] Converting to H.264: %s -> %s", inputPath, outputPath)

	args := []string{
		"-i", inputPath,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "18",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		"-y",
		outputPath,
	}

	if err := s.run(ctx, "ffmpeg", args...); err != nil {
		return fmt.Errorf("ffmpeg h264 conversion failed: %w", err)
	}
	return nil
}

// ExtractFrames samples numFrames stills evenly across the video and writes
// them as JPEGs into outDir. Returns the written frame paths in order.
func (s *FFmpegService) ExtractFrames(ctx context.Context, videoPath, outDir string, numFrames int) ([]string, error) {
	if numFrames < 1 {
		numFrames = 1
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create frame dir: %w", err)
	}

	durationMs, err := s.ProbeDurationMs(ctx, videoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to probe video for frame extraction: %w", err)
	}

	// Sample at the midpoint of each of numFrames equal slices so the first
	// and last frames avoid fade-in/fade-out black.
	sliceMs := durationMs / numFrames
	paths := make([]string, 0, numFrames)
	for i := 0; i < numFrames; i++ {
		atMs := i*sliceMs + sliceMs/2
		framePath := filepath.Join(outDir, fmt.Sprintf("frame_%02d.jpg", i+1))

		args := []string{
			"-ss", fmt.Sprintf("%.3f", float64(atMs)/1000.0),
			"-i", videoPath,
			"-frames:v", "1",
			"-q:v", "2",
			"-y",
			framePath,
		}
		if err := s.run(ctx, "ffmpeg", args...); err != nil {
			return nil, fmt.Errorf("ffmpeg frame extraction failed at %dms: %w", atMs, err)
		}
		paths = append(paths, framePath)
	}

	log.Printf("[FFmpeg] Extracted %d frames from %s", len(paths), videoPath)
	return paths, nil
}

// ProbeDurationMs returns the duration of a media file in milliseconds.
func (s *FFmpegService) ProbeDurationMs(ctx context.Context, path string) (int, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed for %s: %w", path, err)
	}

	var durationSec float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(output)), "%f", &durationSec); err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}
	return int(durationSec * 1000), nil
}

// CreateTempFile returns a path for a scratch file in the temp directory.
func (s *FFmpegService) CreateTempFile(filename string) string {
	return filepath.Join(s.tempDir, filename)
}

// Cleanup removes temporary files
func (s *FFmpegService) Cleanup(paths ...string) {
	for _, path := range paths {
		os.Remove(path)
	}
}

func (s *FFmpegService) run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
