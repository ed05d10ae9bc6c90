package api

// OrphanedServers computes the servers currently running a service but
// excluded from a new target set: current minus target, by IP. Servers
// in the target set that are not currently running the service are new
// targets, not orphans, and never appear in the result.
//
// The refs slice supplies display metadata; an IP present in
// currentIPs but missing from refs still produces an entry with only
// the IP set.
func OrphanedServers(currentIPs []string, refs []ServerRef, targetIPs []string) []ServerRef {
	target := make(map[string]bool, len(targetIPs))
	for _, ip := range targetIPs {
		target[ip] = true
	}

	byIP := make(map[string]ServerRef, len(refs))
	for _, ref := range refs {
		byIP[ref.IP] = ref
	}

	var orphans []ServerRef
	for _, ip := range currentIPs {
		if target[ip] {
			continue
		}
		if ref, ok := byIP[ip]; ok {
			orphans = append(orphans, ref)
		} else {
			orphans = append(orphans, ServerRef{IP: ip})
		}
	}
	return orphans
}

// ServerIPs extracts the IP list from a slice of server refs.
func ServerIPs(refs []ServerRef) []string {
	ips := make([]string, len(refs))
	for i, ref := range refs {
		ips[i] = ref.IP
	}
	return ips
}
