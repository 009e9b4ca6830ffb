package linebot

import (
	"fmt"
	"strings"

	"line-comicbot/pkg/gallery"
)

// User-facing copy.
const (
	BrandName = "Boom!ヒーロー!!"

	MsgEditing            = "🎨 画像を編集中です...\nしばらくお待ちください"
	MsgErrorGeneric       = "❌ 画像処理中にエラーが発生しました。\nもう一度お試しください。"
	MsgErrorRateLimit     = "⏰ 現在、AI処理のリクエストが集中しています。\n少し時間をおいてから（1-2分後）もう一度お試しください。"
	MsgConversionFailed   = "❌ 画像変換に失敗しました。もう一度お試しください。"
	MsgUploadFailed       = "❌ 画像のアップロードに失敗しました。もう一度お試しください。"
	MsgProcessingFailed   = "❌ 処理中にエラーが発生しました。もう一度お試しください。"
	MsgSlideshowHint      = "スライドショーで大きく表示できます"
	MsgHeroTitle          = "📸 ヒーロー、見参！"
	MsgFoundTitle         = "🔎 画像が見つかりました！"
	MsgSlideshowButton    = "🎬 スライドショーで見る"
	MsgEchoPrefix         = "オウム返し: "
	MsgWelcomeTitle       = "🦸‍♂️💥 Boom!ヒーロー!!"
	MsgWelcomeDescription = "あなたがポーズを決めると、その瞬間ヒーローに生まれ変わります！"
	MsgWelcomeFooter      = "早速、ヒーローポーズの写真を送ろう！"
	MsgQuickCamera        = "📸 カメラで撮影"
	MsgQuickCameraRoll    = "🖼️ カメラロール"
)

// Editing sticker shown while a photo is being converted.
const (
	EditingStickerPackage = "11537"
	EditingStickerID      = "52002746"
)

const (
	colorGreen   = "#06C755"
	colorDarkBG  = "#16213e"
	colorGray400 = "#aaaaaa"
)

var welcomeSteps = [][2]string{
	{"📸 写真を送信", "写真をこのBotに送信"},
	{"🤖 AI自動変換", "Google Geminiが自動でアメコミ風に変換"},
	{"🎨 画像が届く", "変身した画像があなたのLINEに！"},
}

// NotFoundText is sent when a Codename lookup has no match.
func NotFoundText(hashID string) string {
	return fmt.Sprintf("申し訳ありません。画像が見つかりませんでした。\n(ID: %s)", hashID)
}

// EchoText repeats a user's message back.
func EchoText(text string) string {
	return MsgEchoPrefix + text
}

// NotConvertedText explains why a photo was not converted.
func NotConvertedText(a gallery.Analysis) string {
	var sb strings.Builder
	sb.WriteString("📸 画像を分析しました！\n\n")
	if a.SubjectPresent {
		sb.WriteString("✅ 人の顔を検出しました\n")
	} else {
		sb.WriteString("❌ 人の顔が検出されませんでした\n")
	}
	if a.Posed {
		sb.WriteString("✅ ポーズを検出しました\n")
	} else {
		sb.WriteString("❌ ポーズが検出されませんでした\n")
	}
	sb.WriteString("\n🦸 アメコミ風変換は、人がいてポーズをしている場合のみ実行されます。\n")
	sb.WriteString("💡 カメラに向かってピースサイン、グッドサイン、ガッツポーズなどをしてみてください！")
	return sb.String()
}
