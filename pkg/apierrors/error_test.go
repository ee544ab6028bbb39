package apierrors_test

import (
	"os"
	"testing"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"

	"task-duel/pkg/apierrors"
	"task-duel/pkg/translator"
)

func TestMain(m *testing.M) {
	translator.Translator = i18n.NewBundle(language.English)
	_ = translator.Translator.AddMessages(language.English, &i18n.Message{ID: "test_key", Other: "Test message"})
	_ = translator.Translator.AddMessages(language.Chinese, &i18n.Message{ID: "test_key", Other: "测试消息"})
	os.Exit(m.Run())
}

func TestCreateError_ReturnsJsonErr(t *testing.T) {
	err := apierrors.CreateError(400, "test_key", "en")
	assert.Equal(t, 400, err.Status)
	assert.Equal(t, "Test message", err.Message)
	assert.Equal(t, "Status: 400, Message: Test message", err.Error())
}

func TestGetTransErrorMsg_UsesLanguage(t *testing.T) {
	assert.Equal(t, "测试消息", apierrors.GetTransErrorMsg("test_key", "zh"))
	assert.Equal(t, "测试消息", apierrors.GetTransErrorMsg("test_key", "zh-CN,zh;q=0.9"))
	assert.Equal(t, "Test message", apierrors.GetTransErrorMsg("test_key", "de"))
}

func TestGetTransErrorMsg_FallbackToKey(t *testing.T) {
	assert.Equal(t, "unknown_key", apierrors.GetTransErrorMsg("unknown_key", "en"))
}
