package s3

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/theapemachine/a2a-runtime/pkg/a2a"
	"github.com/theapemachine/a2a-runtime/pkg/errors"
)

type fakeObjects struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failPuts int
	puts     int
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: make(map[string][]byte)}
}

func (fake *fakeObjects) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	fake.mu.Lock()
	defer fake.mu.Unlock()

	buf, ok := fake.objects[bucket+"/"+key]

	if !ok {
		return nil, ErrNoSuchKey
	}

	return append([]byte(nil), buf...), nil
}

func (fake *fakeObjects) Put(ctx context.Context, bucket, key string, body []byte) error {
	fake.mu.Lock()
	defer fake.mu.Unlock()

	fake.puts++

	if fake.failPuts > 0 {
		fake.failPuts--
		return stderrors.New("service unavailable")
	}

	fake.objects[bucket+"/"+key] = append([]byte(nil), body...)
	return nil
}

func fastRetry() *errors.RetryConfig {
	return &errors.RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      time.Millisecond,
		BackoffFactor: 1,
	}
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given an object backed task store", t, func() {
		objects := newFakeObjects()
		store := NewStore(objects, "tasks", WithRetry(fastRetry()))

		ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		task := a2a.NewTask("t1", "", nil, ts)
		task.UpsertArtifact(a2a.NewTextArtifact("out", "hi"))
		entry := &a2a.TaskAndHistory{
			Task:    task,
			History: []a2a.Message{*a2a.NewTextMessage(a2a.RoleUser, "hello")},
		}

		Convey("It writes both objects and loads them back", func() {
			So(store.Save(ctx, entry), ShouldBeNil)
			So(objects.objects, ShouldContainKey, "tasks/t1.json")
			So(objects.objects, ShouldContainKey, "tasks/t1.history.json")

			loaded, err := store.Load(ctx, "t1")
			So(err, ShouldBeNil)
			So(loaded, ShouldResemble, entry)
		})

		Convey("A missing task object is TaskNotFound", func() {
			_, err := store.Load(ctx, "nope")
			So(errors.Code(err), ShouldEqual, errors.ErrorCodeTaskNotFound)
		})

		Convey("A missing history object reads as empty", func() {
			So(store.Save(ctx, entry), ShouldBeNil)
			delete(objects.objects, "tasks/t1.history.json")

			loaded, err := store.Load(ctx, "t1")
			So(err, ShouldBeNil)
			So(loaded.History, ShouldBeEmpty)
		})

		Convey("Transient put failures are retried", func() {
			objects.failPuts = 2
			So(store.Save(ctx, entry), ShouldBeNil)
			So(objects.puts, ShouldEqual, 4)
		})

		Convey("Persistent put failures surface as InternalError", func() {
			objects.failPuts = 100
			err := store.Save(ctx, entry)
			So(errors.Code(err), ShouldEqual, errors.ErrorCodeInternalError)
		})

		Convey("Traversal IDs never reach the bucket", func() {
			entry.Task.ID = "../x"
			err := store.Save(ctx, entry)
			So(errors.Code(err), ShouldEqual, errors.ErrorCodeInvalidParams)
			So(objects.puts, ShouldEqual, 0)
		})

		Convey("An ID ending in the history suffix cannot overwrite another task's history", func() {
			So(store.Save(ctx, entry), ShouldBeNil)
			puts := objects.puts

			shadow := entry.Task.Clone()
			shadow.ID = "t1.history"
			err := store.Save(ctx, &a2a.TaskAndHistory{Task: shadow, History: []a2a.Message{}})
			So(errors.Code(err), ShouldEqual, errors.ErrorCodeInvalidParams)
			So(objects.puts, ShouldEqual, puts)

			loaded, err := store.Load(ctx, "t1")
			So(err, ShouldBeNil)
			So(loaded, ShouldResemble, entry)
		})
	})
}
