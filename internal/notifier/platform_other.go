//go:build !linux

package notifier

// Desktop notification delivery is only wired for Linux. Other platforms
// fall back to the Nop notifier via New.
func newPlatformNotifier(appName string) (Notifier, error) {
	return nil, ErrUnsupported
}
