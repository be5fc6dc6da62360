package engine

import "fmt"

// Replies is the outbound message catalog. All texts are configuration; the
// defaults are the stock Uzbek-language messages.
type Replies struct {
	PaymentInstructions       string
	ContactInfo               string
	PriceInfo                 string
	EmailSavedAskProof        string // fmt: email
	EmailAcceptedProvisioning string // fmt: email
	Checking                  string
	ProofAcceptedProvisioning string
	ProofAcceptedAskEmail     string
	ProofRejected             string
	UnsupportedAttachment     string
	CredentialsMessage        string // fmt: login, secret
	InviteMessage             string
	AlreadyRegistered         string // fmt: email
	ProvisionFailed           string // fmt: reason
	ExtractionFailed          string
}

// DefaultReplies returns the stock message catalog.
func DefaultReplies() Replies {
	return Replies{
		PaymentInstructions:       "Assalomu alaykum! Pro versiyani olish uchun to'lov qiling:\n\n💳 Karta raqam:\n5614 6847 0893 9507\n👤 Eldor Atajanov",
		ContactInfo:               "❗️ To'lovdan so'ng chek rasmini va emailingizni shu yerga yuboring.",
		PriceInfo:                 "Pro versiya narxi: 99 000 so'm. To'lov rekvizitlari uchun \"karta\" deb yozing.",
		EmailSavedAskProof:        "📧 Email (%s) saqlandi.\nEndi iltimos, to'lov cheki rasmini yuboring.",
		EmailAcceptedProvisioning: "📧 Email qabul qilindi: %s. Profil ochilmoqda...",
		Checking:                  "⏳ Chek tekshirilmoqda, iltimos kuting...",
		ProofAcceptedProvisioning: "✅ Chek tasdiqlandi! Profil yaratilmoqda...",
		ProofAcceptedAskEmail:     "✅ Chek qabul qilindi!\nEndi profil ochish uchun email manzilingizni yozib yuboring.",
		ProofRejected:             "⚠️ Kechirasiz, bu chekda kerakli ma'lumotlarni o'qiy olmadim.\nIltimos, tiniqroq rasm yuboring.",
		UnsupportedAttachment:     "Faqat rasm yoki PDF hujjat qabul qilinadi.",
		CredentialsMessage:        "✅ To'lov tasdiqlandi!\n\nSizning profilingiz yaratildi:\n📧 Login: %s\n🔑 Parol: %s\n\nSaytga kirib bemalol foydalanishingiz mumkin.",
		InviteMessage:             "👇 Bizning yopiq kanalimizga qo'shiling:\nhttps://t.me/+G5z5KWbXBZ04OTAy",
		AlreadyRegistered:         "⚠️ Bu email (%s) allaqachon ro'yxatdan o'tgan. Kanalimiz: https://t.me/+G5z5KWbXBZ04OTAy",
		ProvisionFailed:           "❌ Xatolik yuz berdi: %s",
		ExtractionFailed:          "❌ Tizimda xatolik yuz berdi. Iltimos, keyinroq qayta urinib ko'ring.",
	}
}

func (r Replies) emailSaved(email string) string {
	return fmt.Sprintf(r.EmailSavedAskProof, email)
}

func (r Replies) emailAccepted(email string) string {
	return fmt.Sprintf(r.EmailAcceptedProvisioning, email)
}

func (r Replies) credentials(login, secret string) string {
	return fmt.Sprintf(r.CredentialsMessage, login, secret)
}

func (r Replies) alreadyRegistered(email string) string {
	return fmt.Sprintf(r.AlreadyRegistered, email)
}

func (r Replies) provisionFailed(reason string) string {
	return fmt.Sprintf(r.ProvisionFailed, reason)
}
