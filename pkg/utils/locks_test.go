package utils

import (
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestKeyedMutex(t *testing.T) {
	Convey("Given a keyed mutex", t, func() {
		km := NewKeyedMutex()

		Convey("When many goroutines increment a counter under the same key", func() {
			var wg sync.WaitGroup
			counter := 0

			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					unlock := km.Lock("a")
					counter++
					unlock()
				}()
			}

			wg.Wait()

			Convey("Then no increment is lost and the entry is released", func() {
				So(counter, ShouldEqual, 50)
				So(km.Len(), ShouldEqual, 0)
			})
		})

		Convey("When one key is held", func() {
			unlockA := km.Lock("a")
			acquired := make(chan struct{})

			go func() {
				unlockB := km.Lock("b")
				close(acquired)
				unlockB()
			}()

			Convey("Then a different key can still be acquired", func() {
				ok := false

				select {
				case <-acquired:
					ok = true
				case <-time.After(time.Second):
				}

				So(ok, ShouldBeTrue)
				unlockA()
			})
		})
	})
}
