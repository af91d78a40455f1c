package monitor

// Open alerts live at alert/{stage} so they survive restarts. Cleared alerts
// leave no key; history is in the journal.
const prefixAlert = "alert/"

func alertKey(stage string) []byte { return []byte(prefixAlert + stage) }
