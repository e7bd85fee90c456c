// SPDX-License-Identifier: EPL-2.0

package allocator_test

import (
	"fmt"

	"github.com/ik5/audslot/allocator"
)

func Example() {
	a, _ := allocator.New[string](allocator.WithCapacity(2))

	stop := func(id allocator.ID) { fmt.Println("stop", id) }

	a.Allocate(allocator.Request[string]{Priority: allocator.Low, Stop: stop, Persistent: true, State: "rain"})
	a.Allocate(allocator.Request[string]{Priority: allocator.Medium, Stop: stop})

	id, _ := a.Allocate(allocator.Request[string]{Priority: allocator.High, Stop: stop})
	state, _ := a.GetSpeakerState(1)
	fmt.Println("got", id, "recoverable", state)
	// Output:
	// stop 1
	// got 1 recoverable rain
}
