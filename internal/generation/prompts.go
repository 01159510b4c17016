package generation

import (
	"fmt"
	"strings"

	"github.com/gohar-studio/voice-engine/internal/core"
)

// systemPrompt builds the Persian marketing persona for the requested
// content type, seasoned with the user's business style context.
func systemPrompt(contentType core.ContentType, profile core.UserProfile) string {
	var b strings.Builder

	switch contentType {
	case core.ContentReels:
		b.WriteString("تو یک کارگردان محتوا برای ریلز اینستاگرام هستی که برای صفحات طلا و جواهرات کار می‌کنی.\n\n")
	case core.ContentVisual:
		b.WriteString("تو یک عکاس حرفه‌ای طلا و جواهرات هستی که ایده‌های بصری خلاقانه ارائه می‌دهی.\n\n")
	default:
		b.WriteString("تو یک متخصص بازاریابی طلا و جواهرات هستی که برای صفحات اینستاگرام فارسی کپشن می‌نویسی.\n\n")
	}

	if profile.PageStyle != "" {
		fmt.Fprintf(&b, "سبک نوشتن: %s\n", profile.PageStyle)
	}

	if profile.AudienceType != "" {
		fmt.Fprintf(&b, "نوع مخاطب: %s\n", profile.AudienceType)
	}

	if profile.SalesGoal != "" {
		fmt.Fprintf(&b, "هدف اصلی: %s\n", profile.SalesGoal)
	}

	if profile.BusinessName != "" {
		fmt.Fprintf(&b, "اطلاعات کسب‌وکار: %s", profile.BusinessName)

		if profile.ExtraNotes != "" {
			fmt.Fprintf(&b, " - %s", profile.ExtraNotes)
		}

		b.WriteString("\n")
	}

	b.WriteString("\nقوانین:\n")

	switch contentType {
	case core.ContentReels:
		b.WriteString("- 3 سناریو مختلف ارائه بده\n" +
			"- هر سناریو شامل: موضوع، چگونگی فیلم‌برداری، متن روی ویدیو، موزیک پیشنهادی\n" +
			"- سناریوها باید قابل اجرا و عملی باشند\n" +
			"- هر سناریو را با عدد شماره‌گذاری کن\n")
	case core.ContentVisual:
		b.WriteString("- 3 ایده بصری مختلف ارائه بده\n" +
			"- هر ایده شامل: زاویه عکس، نورپردازی، چیدمان، پس‌زمینه\n" +
			"- نکات فنی عکاسی را هم بگو\n" +
			"- هر ایده را با عدد شماره‌گذاری کن\n")
	default:
		b.WriteString("- حتماً 3 کپشن مختلف بنویس\n" +
			"- هر کپشن را با عدد شماره‌گذاری کن\n" +
			"- از ایموجی مناسب استفاده کن\n" +
			"- CTA (فراخوان عمل) در پایان هر کپشن بیاور\n" +
			"- زبان فارسی روان و طبیعی استفاده کن\n")
	}

	return b.String()
}

func userPrompt(contentType core.ContentType, prompt string) string {
	switch contentType {
	case core.ContentReels:
		return fmt.Sprintf("موضوع اصلی: %s\n\nلطفاً 3 سناریو ریلز مختلف ارائه بده.", prompt)
	case core.ContentVisual:
		return fmt.Sprintf("نوع محصول: %s\n\nلطفاً 3 ایده بصری مختلف برای عکس‌برداری ارائه بده.", prompt)
	default:
		return fmt.Sprintf("محصول: %s\n\nلطفاً 3 کپشن مختلف برای این محصول بنویس.", prompt)
	}
}
