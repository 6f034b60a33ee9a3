package program

import (
	"context"
	"fmt"

	"github.com/cascade-run/cascade/internal/handler"
	"github.com/cascade-run/cascade/internal/subdialogue"
)

const pageSize = 5

// ResolveDevice picks a single device instance for kind. Zero matches is a
// parse error (nothing to run against); exactly one resolves silently
// (the common case, per spec.md §4.4 item 3: disambiguation only engages
// when there is a real choice); more than one pages through
// AskChoices in blocks of pageSize, appending "None of the above" always
// and "Back"/"More…" as the page requires.
func ResolveDevice(ctx context.Context, s *subdialogue.Session, dir DeviceDirectory, kind string) (string, error) {
	devices := dir.Devices(kind)
	switch len(devices) {
	case 0:
		return "", parseErrorf("no configured device for %s", kind)
	case 1:
		return devices[0], nil
	}

	idx, err := choosePaged(ctx, s, fmt.Sprintf("Which %s do you mean?", kind), devices)
	if err != nil {
		return "", err
	}
	if idx < 0 {
		return "", cancelledNoDevice()
	}
	return devices[idx], nil
}

// choosePaged walks labels through AskChoices in blocks of pageSize,
// always appending "None of the above" and "Back"/"More…" as the page
// requires (spec.md §4.4 item 3's numbered-choice disambiguation, shared
// by device and contact resolution). It returns the index into labels
// the user picked, or -1 if they picked "None of the above".
func choosePaged(ctx context.Context, s *subdialogue.Session, prompt string, labels []string) (int, error) {
	page := 0
	for {
		start := page * pageSize
		end := start + pageSize
		if end > len(labels) {
			end = len(labels)
		}
		choices := append([]string(nil), labels[start:end]...)
		hasMore := end < len(labels)
		hasBack := page > 0

		if hasBack {
			choices = append(choices, "Back")
		}
		if hasMore {
			choices = append(choices, "More…")
		}
		choices = append(choices, "None of the above")

		idx, err := subdialogue.AskChoices(ctx, s, prompt, choices)
		if err != nil {
			return 0, err
		}

		dataCount := end - start
		switch {
		case idx < dataCount:
			return start + idx, nil
		case hasBack && idx == dataCount:
			page--
			continue
		case hasMore && idx == dataCount+boolIdx(hasBack):
			page++
			continue
		default:
			// "None of the above" — the last entry on every page.
			return -1, nil
		}
	}
}

func boolIdx(b bool) int {
	if b {
		return 1
	}
	return 0
}

// bindOutputs auto-binds upstream's declared output parameters onto
// downstream's undeclared same-named input parameters, the "=>" pipeline
// composition of spec.md §1's worked examples
// (`@com.xkcd.get_comic => @com.twitter.post_picture`: xkcd's picture_url
// output feeds twitter's picture_url input without the user ever naming
// it).
func bindOutputs(upstream, downstream *handler.ProgramAST) {
	for i := range downstream.Params {
		p := &downstream.Params[i]
		if p.HasValue {
			continue
		}
		for _, up := range upstream.Params {
			if up.Name == p.Name && up.HasValue {
				p.Value = up.Value
				p.HasValue = true
				break
			}
		}
	}
}
