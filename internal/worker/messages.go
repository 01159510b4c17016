package worker

// User-facing Persian messages published on the assistant reply subject.
const (
	msgChooseContentType = "اول نوع محتوا را انتخاب کن: کپشن، سناریوی ریلز یا ایده عکس و ویدیو. 💎"

	msgCaptionSelected = "عالی! ✍️ حالا یک ویس بفرست و درباره محصولت توضیح بده تا برایت کپشن بنویسم. می‌توانی متن هم تایپ کنی."
	msgReelsSelected   = "عالی! 🎬 حالا یک ویس بفرست و بگو چه محصولی داری تا برایت سناریوی ریلز بسازم. می‌توانی متن هم تایپ کنی."
	msgVisualSelected  = "عالی! 📸 حالا یک ویس بفرست و محصولت را معرفی کن تا ایده عکس و ویدیو بدهم. می‌توانی متن هم تایپ کنی."

	msgTranscribing = "🎧 صدایت رسید! چند لحظه صبر کن تا متنش را آماده کنم..."

	msgConfirmPrompt = "این متن پیام توست:\n\n«%s»\n\nاگر درست است تایید کن تا محتوا را بسازم، وگرنه ویرایش را بزن. ✅"

	msgAlreadyInProgress = "پیام صوتی قبلی‌ات هنوز در حال پردازش است. لطفاً چند لحظه صبر کن. ⏳"
	msgOverloaded        = "الان سرم خیلی شلوغ است! 😅 لطفاً چند دقیقه دیگر دوباره ویس بفرست."

	msgAudioTooLarge      = "حجم فایل صوتی بیشتر از حد مجاز است. لطفاً ویس کوتاه‌تری بفرست. 🙏"
	msgAudioTooLong       = "ویس طولانی‌تر از ۵ دقیقه است. لطفاً خلاصه‌ترش کن و دوباره بفرست. 🙏"
	msgAudioUnsupported   = "متأسفانه نتوانستم این فایل صوتی را پردازش کنم. لطفاً دوباره ویس بفرست. 🙏"
	msgTranscriptionError = "در تبدیل صدا به متن مشکلی پیش آمد. لطفاً دوباره ویس بفرست. 🙏"

	msgEditPrompt        = "باشه! ✏️ متن درست را تایپ کن و بفرست."
	msgEditLimitExceeded = "به سقف ویرایش رسیدی. لطفاً یک ویس جدید بفرست تا از اول شروع کنیم. 🎤"
	msgNothingToConfirm  = "فعلاً متنی برای تایید وجود ندارد. اول یک ویس بفرست. 🎤"
	msgEmptyEdit         = "متن خالی بود! لطفاً متن درست را تایپ کن و بفرست."

	msgPromptEmpty   = "پیامت خالی به نظر می‌رسد. لطفاً دوباره توضیح بده. 🙏"
	msgPromptTooLong = "توضیحت خیلی طولانی شد! لطفاً خلاصه‌ترش کن و دوباره بفرست. 🙏"

	msgGenerating      = "🤖 دارم محتوایت را آماده می‌کنم، چند لحظه صبر کن..."
	msgGenerationError = "در تولید محتوا مشکلی پیش آمد. لطفاً دوباره تلاش کن. 🙏"

	msgSessionExpired = "مدتی خبری ازت نبود، گفتگو بسته شد. هر وقت آماده بودی دوباره شروع کن! ⏰"
)

