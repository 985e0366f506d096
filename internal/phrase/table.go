package phrase

// defaultEmergencyTable is the built-in emergency phrase set. Keys are
// normalized at load time; values are the pre-mediated output dispatched on
// the fast path without invoking external mediation.
var defaultEmergencyTable = map[string]string{
	"help":              "I need help right now.",
	"help me":           "I need help right now.",
	"emergency":         "This is an emergency. Please get help immediately.",
	"call 911":          "Please call 911 immediately.",
	"call ambulance":    "Please call an ambulance immediately.",
	"chest pain":        "I am having chest pain. I may need urgent medical attention.",
	"heart attack":      "I think I am having a heart attack. Call emergency services now.",
	"can't breathe":     "I cannot breathe. I need urgent help.",
	"cannot breathe":    "I cannot breathe. I need urgent help.",
	"i can't breathe":   "I cannot breathe. I need urgent help.",
	"stroke":            "I think I am having a stroke. Call emergency services now.",
	"allergic reaction": "I am having an allergic reaction. I may need epinephrine.",
	"severe bleeding":   "There is severe bleeding. Apply pressure and call for help.",
	"bleeding":          "I am bleeding and need medical attention.",
	"unconscious":       "Someone is unconscious. Call emergency services now.",
	"choking":           "Someone is choking. They need help immediately.",
	"severe pain":       "I am in severe pain and need medical attention.",
	"dizzy":             "I feel dizzy and may faint.",
	"seizure":           "Someone is having a seizure. Call emergency services.",
	"diabetic":          "I am diabetic. I may need sugar or insulin.",
	"medication":        "I need my medication.",
	"doctor":            "I need to see a doctor.",
	"nurse":             "Please call a nurse.",
	"pain here":         "I have pain in the area I am pointing to.",
	"fell down":         "I fell down and may be injured.",
	"broken bone":       "I think a bone is broken. I need an x-ray.",
	"fire":              "There is a fire. Evacuate and call emergency services.",
	"poison":            "Someone may have been poisoned. Call poison control.",
}
