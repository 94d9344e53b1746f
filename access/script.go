package access

import (
	"fmt"
	"strings"

	"go.hackfix.me/curfew/xtime"
)

// filterMenu returns the firewall filter menu for the address family of ip.
func filterMenu(ip string) string {
	if strings.Contains(ip, ":") {
		return "/ipv6 firewall filter"
	}
	return "/ip firewall filter"
}

// toggleScript returns a script that enables the rule commented enable and
// disables the rule commented disable, in that order. Rules are looked up by
// comment when the script runs, so it keeps working if they're recreated.
func toggleScript(ip, enable, disable string) string {
	menu := filterMenu(ip)
	return fmt.Sprintf(`%[1]s enable [find comment="%[2]s"]; %[1]s disable [find comment="%[3]s"]`,
		menu, enable, disable)
}

// enableScript opens the window: the allow rule is enabled, then the block
// rule disabled. The router scheduler can only repeat at fixed intervals, so
// unless every day is selected the toggles only run on the selected weekdays.
func enableScript(tag Tag, days xtime.Days) string {
	script := toggleScript(tag.IP, tag.RuleName(RoleAllow), tag.RuleName(RoleBlock))
	if days.IsEveryDay() {
		return script
	}
	return fmt.Sprintf(`:if ([:typeof [:find "%s" [:pick [/system clock get day-of-week] 0 3]]] = "num") do={ %s }`,
		days.String(), script)
}

// disableScript closes the window. It runs every day, which is a no-op on days
// the window wasn't opened, and lets overnight windows close on the day after
// they were opened.
func disableScript(tag Tag) string {
	return toggleScript(tag.IP, tag.RuleName(RoleBlock), tag.RuleName(RoleAllow))
}
