package errclass

import (
	"os"
	"strings"

	"golang.org/x/text/language"
)

// Locale is a supported message locale.
type Locale string

const (
	LocaleZH Locale = "zh"
	LocaleEN Locale = "en"
)

func (l Locale) Valid() bool { return l == LocaleZH || l == LocaleEN }

// ParseLocale returns the supported locale of a language tag or POSIX locale
// (e.g `en-GB`, `en_US.UTF-8`). Anything not english is mapped to `zh`.
func ParseLocale(s string) Locale {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".@"); i >= 0 {
		s = s[:i]
	}

	tag, err := language.Parse(s)
	if err != nil {
		return LocaleZH
	}

	base, _ := tag.Base()
	en, _ := language.English.Base()
	if base == en {
		return LocaleEN
	}
	return LocaleZH
}

// DefaultLocale returns the locale from the environment (`LC_ALL`, `LC_MESSAGES` and `LANG`).
func DefaultLocale() Locale {
	for _, env := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(env); v != "" {
			return ParseLocale(v)
		}
	}
	return LocaleZH
}

// LocalizedMessage is the user facing text of an error.
type LocalizedMessage struct {
	Title       string
	Description string
	Suggestion  string
}

var localizedMessages = map[Code]map[Locale]LocalizedMessage{
	CodeCacheMiss: {
		LocaleZH: {Title: "缓存已过期或不存在", Description: "未找到可用的本地缓存数据，需要重新加载。", Suggestion: "点击重试以重新加载数据。"},
		LocaleEN: {Title: "Cache missing or expired", Description: "No valid cached data found. A reload is required.", Suggestion: "Press retry to reload data."},
	},
	CodeFileNotFound: {
		LocaleZH: {Title: "数据文件未找到", Description: "数据文件缺失或路径错误。", Suggestion: "请重新加载或稍后再试。"},
		LocaleEN: {Title: "Data file not found", Description: "The data file is missing or the path is incorrect.", Suggestion: "Reload or try again later."},
	},
	CodeParseError: {
		LocaleZH: {Title: "数据解析失败", Description: "读取到的数据格式不正确。", Suggestion: "请检查数据格式，若问题持续请联系支持。"},
		LocaleEN: {Title: "Data parse error", Description: "The data has an invalid format.", Suggestion: "Check the data format. If the issue persists, contact support."},
	},
	CodeNetworkError: {
		LocaleZH: {Title: "网络连接异常", Description: "当前网络不可用或连接不稳定。", Suggestion: "请检查网络后重试。"},
		LocaleEN: {Title: "Network error", Description: "The network is unavailable or unstable.", Suggestion: "Check your connection and retry."},
	},
	CodeValidationError: {
		LocaleZH: {Title: "表单校验失败", Description: "部分输入数据不符合要求，请检查输入字段。", Suggestion: "根据提示修正后再次提交。"},
		LocaleEN: {Title: "Validation failed", Description: "Some inputs are invalid. Please check the input fields.", Suggestion: "Fix the issues and submit again."},
	},
	CodeTimeout: {
		LocaleZH: {Title: "分析超时", Description: "分析进度超出预期时间。", Suggestion: "可尝试重试，或稍后再试。"},
		LocaleEN: {Title: "Analysis timeout", Description: "The analysis exceeded the expected time.", Suggestion: "Retry now or try again later."},
	},
	CodeInterrupted: {
		LocaleZH: {Title: "分析已中断", Description: "进度被手动取消或发生异常中断。", Suggestion: "可重新开始分析。"},
		LocaleEN: {Title: "Analysis interrupted", Description: "The progress was cancelled or interrupted.", Suggestion: "You can start the analysis again."},
	},
	CodeAPIError: {
		LocaleZH: {Title: "服务端错误", Description: "调用分析服务失败或返回无效结果。", Suggestion: "请重试，若问题持续请联系支持。"},
		LocaleEN: {Title: "API error", Description: "The analysis service failed or returned an invalid response.", Suggestion: "Retry. If it persists, contact support."},
	},
	CodeStateInconsistency: {
		LocaleZH: {Title: "状态不一致", Description: "检测到状态机异常。", Suggestion: "返回表单重新开始，以恢复正常流程。"},
		LocaleEN: {Title: "State inconsistency", Description: "An inconsistency was detected in the workflow state.", Suggestion: "Return to the form and restart the flow."},
	},
	CodeUnknown: {
		LocaleZH: {Title: "未知错误", Description: "发生未预期的异常。", Suggestion: "请重新加载或稍后再试。"},
		LocaleEN: {Title: "Unknown error", Description: "An unexpected error occurred.", Suggestion: "Reload or try again later."},
	},
}

// Localize returns the message of the error in the locale, if the locale is
// not supported the classifier locale is used.
func (c *Classifier) Localize(info Info, locale Locale) LocalizedMessage {
	if !locale.Valid() {
		locale = c.locale
	}

	msgs, ok := localizedMessages[info.Code]
	if !ok {
		msgs = localizedMessages[CodeUnknown]
	}
	return msgs[locale]
}

// Localize localizes using the default classifier.
func Localize(info Info, locale Locale) LocalizedMessage { return Default.Localize(info, locale) }
