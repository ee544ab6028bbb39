package translator

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
)

//go:embed locales/*.toml
var embeddedLocales embed.FS

var Translator *i18n.Bundle

type Config struct {
	// TranslationFolder 为空时只加载内置的消息文件
	TranslationFolder string
}

const (
	LanguageEn = "en"
	LanguageZh = "zh"
)

// InitTranslator 加载内置消息文件，再加载 TranslationFolder 中的覆盖文件
func InitTranslator(cfg Config) {
	Translator = i18n.NewBundle(language.English)
	Translator.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	loadDir(embeddedLocales, "locales")

	if cfg.TranslationFolder == "" {
		return
	}
	if _, err := os.Stat(cfg.TranslationFolder); err != nil {
		logrus.WithField("folder", cfg.TranslationFolder).WithError(err).Error("failed to open translation folder")
		return
	}
	loadDir(os.DirFS(cfg.TranslationFolder), ".")
}

func loadDir(fsys fs.FS, dir string) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		logrus.WithField("folder", dir).WithError(err).Error("failed to list translation folder")
		return
	}
	for _, f := range entries {
		if f.IsDir() || path.Ext(f.Name()) != ".toml" {
			continue
		}
		p := path.Join(dir, f.Name())
		if _, err := Translator.LoadMessageFileFS(fsys, p); err != nil {
			logrus.WithField("file", f.Name()).WithError(err).Warn("failed to load translation file")
		}
	}
}

// MustLocalize 供测试与启动检查使用，消息缺失时 panic
func MustLocalize(msgKey, lang string) string {
	if Translator == nil {
		panic(fmt.Sprintf("translator not initialized (looking up %q)", msgKey))
	}
	return i18n.NewLocalizer(Translator, lang, LanguageEn).MustLocalize(&i18n.LocalizeConfig{MessageID: msgKey})
}
