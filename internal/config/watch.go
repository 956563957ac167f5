package config

import (
	"github.com/fsnotify/fsnotify"

	"htsim/internal/logger"
)

// Watch re-reads the file on change and hands the fresh config to onChange.
// The log level is applied directly so level flips take effect without a
// restart. A reload that fails validation is logged and dropped; the running
// config stays as it was. No-op when path is empty.
func Watch(path string, onChange func(*Config)) error {
	if path == "" {
		return nil
	}
	v, err := newViper(path)
	if err != nil {
		return err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			logger.Errorf("config reload failed (%s): %v", evt.Name, err)
			return
		}
		logger.SetLevel(cfg.LogLevel)
		logger.Infof("config reloaded from %s", evt.Name)
		if onChange != nil {
			onChange(cfg)
		}
	})
	v.WatchConfig()
	return nil
}
