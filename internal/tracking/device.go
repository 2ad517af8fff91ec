package tracking

import (
	"regexp"
	"strings"
)

// DeviceInfo is the result of user-agent device classification.
// Unrecognized agents yield Type "unknown" with empty OS/Browser.
type DeviceInfo struct {
	Type    string `json:"type"`
	OS      string `json:"os,omitempty"`
	Browser string `json:"browser,omitempty"`
}

const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceUnknown = "unknown"
)

// Tablet patterns are checked before generic mobile patterns so that an
// Android UA without the Mobi token classifies as tablet.
var (
	reTablet  = regexp.MustCompile(`(?i)iPad|Tablet|Kindle|Silk|PlayBook`)
	reAndroid = regexp.MustCompile(`(?i)Android`)
	reMobi    = regexp.MustCompile(`(?i)Mobi`)
	reMobile  = regexp.MustCompile(`(?i)iPhone|iPod|Windows Phone|BlackBerry|webOS|Opera Mini`)
	reDesktop = regexp.MustCompile(`Windows NT|Macintosh|X11|CrOS|Linux`)

	reWindowsNT = regexp.MustCompile(`Windows NT (\d+\.\d+)`)
	reMacOS     = regexp.MustCompile(`Mac OS X (\d+[._]\d+(?:[._]\d+)?)`)
	reIOS       = regexp.MustCompile(`(?:iPhone|iPad|iPod).*? OS (\d+[._]\d+(?:[._]\d+)?)`)
	reAndroidV  = regexp.MustCompile(`Android (\d+(?:\.\d+)*)`)

	reEdge    = regexp.MustCompile(`Edg(?:e|A|iOS)?/(\d+[\d.]*)`)
	reOpera   = regexp.MustCompile(`(?:OPR|Opera)/(\d+[\d.]*)`)
	reSamsung = regexp.MustCompile(`SamsungBrowser/(\d+[\d.]*)`)
	reFirefox = regexp.MustCompile(`(?:Firefox|FxiOS)/(\d+[\d.]*)`)
	reChrome  = regexp.MustCompile(`(?:Chrome|CriOS)/(\d+[\d.]*)`)
	reSafari  = regexp.MustCompile(`Version/(\d+[\d.]*).*Safari`)
	reMSIE    = regexp.MustCompile(`MSIE (\d+[\d.]*)|Trident/.*rv:(\d+[\d.]*)`)
)

// Windows NT build numbers to marketing names.
var windowsNames = map[string]string{
	"10.0": "Windows 10",
	"6.3":  "Windows 8.1",
	"6.2":  "Windows 8",
	"6.1":  "Windows 7",
	"6.0":  "Windows Vista",
	"5.1":  "Windows XP",
}

// ClassifyDevice maps a raw user-agent string to device type, OS, and browser.
// It is pure, has no error cases, and always returns a value.
func ClassifyDevice(ua string) DeviceInfo {
	if ua == "" {
		return DeviceInfo{Type: DeviceUnknown}
	}
	return DeviceInfo{
		Type:    deviceType(ua),
		OS:      detectOS(ua),
		Browser: detectBrowser(ua),
	}
}

func deviceType(ua string) string {
	switch {
	case reTablet.MatchString(ua):
		return DeviceTablet
	case reAndroid.MatchString(ua) && !reMobi.MatchString(ua):
		return DeviceTablet
	case reMobi.MatchString(ua) || reMobile.MatchString(ua) || reAndroid.MatchString(ua):
		return DeviceMobile
	case reDesktop.MatchString(ua):
		return DeviceDesktop
	default:
		return DeviceUnknown
	}
}

func detectOS(ua string) string {
	// iOS first: iPhone/iPad UAs also contain "Mac OS X".
	if m := reIOS.FindStringSubmatch(ua); m != nil {
		return "iOS " + dotted(m[1])
	}
	if m := reAndroidV.FindStringSubmatch(ua); m != nil {
		return "Android " + m[1]
	}
	if reAndroid.MatchString(ua) {
		return "Android"
	}
	if m := reWindowsNT.FindStringSubmatch(ua); m != nil {
		if name, ok := windowsNames[m[1]]; ok {
			return name
		}
		return "Windows"
	}
	if m := reMacOS.FindStringSubmatch(ua); m != nil {
		return "macOS " + dotted(m[1])
	}
	if strings.Contains(ua, "CrOS") {
		return "ChromeOS"
	}
	if strings.Contains(ua, "Linux") || strings.Contains(ua, "X11") {
		return "Linux"
	}
	return ""
}

func detectBrowser(ua string) string {
	// Order matters: Chrome UAs contain Safari, Edge UAs contain Chrome.
	if reEdge.MatchString(ua) {
		return "Edge"
	}
	if reOpera.MatchString(ua) {
		return "Opera"
	}
	if reSamsung.MatchString(ua) {
		return "Samsung Internet"
	}
	if reFirefox.MatchString(ua) {
		return "Firefox"
	}
	if reChrome.MatchString(ua) {
		return "Chrome"
	}
	if reSafari.MatchString(ua) || strings.Contains(ua, "Safari") {
		return "Safari"
	}
	if reMSIE.MatchString(ua) {
		return "Internet Explorer"
	}
	return ""
}

func dotted(v string) string {
	return strings.ReplaceAll(v, "_", ".")
}
