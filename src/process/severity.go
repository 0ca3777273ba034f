package process

// Severity is a runtime error level. Values are bit flags so they can be
// combined into a reporting mask.
type Severity int

const (
	SeverityError            Severity = 1
	SeverityWarning          Severity = 2
	SeverityParse            Severity = 4
	SeverityNotice           Severity = 8
	SeverityCoreError        Severity = 16
	SeverityCoreWarning      Severity = 32
	SeverityCompileError     Severity = 64
	SeverityCompileWarning   Severity = 128
	SeverityUserError        Severity = 256
	SeverityUserWarning      Severity = 512
	SeverityUserNotice       Severity = 1024
	SeverityStrict           Severity = 2048
	SeverityRecoverableError Severity = 4096
	SeverityDeprecated       Severity = 8192
	SeverityUserDeprecated   Severity = 16384

	// SeverityAll is the mask with every standard level enabled.
	SeverityAll Severity = 32767

	// SeverityHostFatal is the level the host reports for a fatal shutdown.
	// It sits outside SeverityAll.
	SeverityHostFatal Severity = 16777217
)

// Enabled reports whether level is active in mask.
func (mask Severity) Enabled(level Severity) bool {
	return mask&level != 0
}
