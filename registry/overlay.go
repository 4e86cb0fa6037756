package registry

import "github.com/sorhq/sor/core"

// applyOverlay folds the overrides targeting (name, version) onto the base
// status/autonomy/rate_limit/channels/actors fields, in file order, so a
// later overlay entry wins over an earlier one. Overlays may only touch
// these fields; everything else on the definition is immutable at load time.
func applyOverlay(name, version string, base overlayBase, overrides []Override) overlayBase {
	result := base
	for _, o := range overrides {
		if o.Name != name {
			continue
		}
		if o.Version != "" && o.Version != version {
			continue
		}
		if o.Status != "" {
			result.Status = core.Status(o.Status)
		}
		if o.Autonomy != "" {
			result.Autonomy = core.AutonomyLevel(o.Autonomy)
		}
		if o.RateLimit != nil {
			result.RateLimit = o.RateLimit
		}
		if o.Channels != nil {
			result.Channels = &core.ChannelPolicy{
				Allow: toSet(o.Channels.Allow),
				Deny:  toSet(o.Channels.Deny),
			}
		}
		if o.Actors != nil {
			result.Actors = &core.ActorPolicy{
				Allow: toSet(o.Actors.Allow),
				Deny:  toSet(o.Actors.Deny),
			}
		}
	}
	return result
}

// overlayBase is the subset of an entry's policy-relevant fields an overlay
// can override, carried separately from the immutable definition.
type overlayBase struct {
	Status    core.Status
	Autonomy  core.AutonomyLevel
	RateLimit *core.RateLimit
	Channels  *core.ChannelPolicy
	Actors    *core.ActorPolicy
}

func toSet(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
