package apierrors

import (
	"fmt"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/sirupsen/logrus"

	"task-duel/pkg/translator"
)

// JsonErr 是错误响应体 {"error": "..."}
type JsonErr struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
}

func (e JsonErr) Error() string {
	return fmt.Sprintf("Status: %d, Message: %s", e.Status, e.Message)
}

// CreateError 生成带翻译消息的 JsonErr
func CreateError(status int, msgKey string, lang string) JsonErr {
	return JsonErr{Status: status, Message: GetTransErrorMsg(msgKey, lang)}
}

// GetTransErrorMsg 按语言取翻译，找不到时回退到英文，再回退到 key 本身
func GetTransErrorMsg(msgKey string, lang string) string {
	if translator.Translator == nil {
		return msgKey
	}
	l := i18n.NewLocalizer(translator.Translator, lang, translator.LanguageEn)
	msg, err := l.Localize(&i18n.LocalizeConfig{MessageID: msgKey})
	if err != nil {
		logrus.WithFields(logrus.Fields{"lang": lang, "message_id": msgKey}).WithError(err).Warn("translation not found")
		return msgKey
	}
	return msg
}
