package prompts

// Caller-safe texts used when something upstream fails. The phone line must
// always get a speakable reply.
const (
	FallbackApology = "I'm sorry, I'm having a little trouble right now. Could you say that again?"

	FallbackProceed = "I want to make sure I help you properly. How would you like to proceed?"

	MissingSessionApology = "I'm sorry, something went wrong on our end. Please call back and we'll take care of you."

	ClosingLine = "Thanks for calling. Someone will be in touch with you shortly. Goodbye!"
)
