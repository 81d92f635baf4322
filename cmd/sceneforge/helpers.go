package main

import (
	"fmt"
	"os"
	"path/filepath"

	"sceneforge/internal/config"
	"sceneforge/internal/services"
	"sceneforge/internal/store"
	"sceneforge/internal/workflow"
)

// commandContext carries lazily-built shared state between subcommands.
// Config is loaded once; collaborators are constructed from it explicitly so
// nothing reads the environment past startup.
type commandContext struct {
	projectFlag *string
	cfg         *config.Config
}

func newCommandContext(projectFlag *string) *commandContext {
	return &commandContext{projectFlag: projectFlag}
}

func (c *commandContext) loadConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

func (c *commandContext) projectName() (string, error) {
	if c.projectFlag != nil && *c.projectFlag != "" {
		return *c.projectFlag, nil
	}
	cfg, err := c.loadConfig()
	if err != nil {
		return "", err
	}
	return cfg.ProjectName, nil
}

func (c *commandContext) openStore() (*store.Store, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	project, err := c.projectName()
	if err != nil {
		return nil, err
	}
	return store.New(cfg.ProjectsRoot, project)
}

func (c *commandContext) newFFmpeg() (*services.FFmpegService, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	return services.NewFFmpegService(filepath.Join(os.TempDir(), "sceneforge"), cfg.ProResProfile), nil
}

func (c *commandContext) newTTS() (workflow.Synthesizer, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	if tts := services.NewTTSService(cfg); tts != nil {
		return tts, nil
	}
	return nil, nil
}

func (c *commandContext) newAnalyzer() (*services.AnalyzerService, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("analysis requires OPENAI_API_KEY")
	}
	ffmpeg, err := c.newFFmpeg()
	if err != nil {
		return nil, err
	}
	return services.NewAnalyzerService(cfg.OpenAIKey, cfg.AnalyzerModel, cfg.AnalyzerNumFrames, ffmpeg), nil
}

// buildWorkflow assembles the orchestrator with every configured
// collaborator. providerName overrides the configured default when non-empty.
func (c *commandContext) buildWorkflow(providerName string) (*workflow.Workflow, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	st, err := c.openStore()
	if err != nil {
		return nil, err
	}
	provider, err := services.NewVideoProvider(cfg, providerName)
	if err != nil {
		return nil, err
	}
	ffmpeg, err := c.newFFmpeg()
	if err != nil {
		return nil, err
	}
	tts, err := c.newTTS()
	if err != nil {
		return nil, err
	}

	var lipsync workflow.LipSyncer
	if cfg.DIDAPIKey != "" {
		lipsync = services.NewLipSyncService(cfg.DIDAPIKey)
	}
	var analyzer workflow.Analyzer
	if cfg.OpenAIKey != "" {
		analyzer = services.NewAnalyzerService(cfg.OpenAIKey, cfg.AnalyzerModel, cfg.AnalyzerNumFrames, ffmpeg)
	}

	wf := workflow.New(st, provider, ffmpeg, tts, lipsync, analyzer, services.NewDownloader())
	wf.SetProviderFactory(func(name string) (services.VideoProvider, error) {
		return services.NewVideoProvider(cfg, name)
	})
	return wf, nil
}
