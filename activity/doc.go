// Package activity turns a vault's native notifications into subscribable
// event streams.
//
// Two streams exist. A file stream emits EventChanged for every applied log
// entry whose path matches its pattern. A network stream emits
// EventNetworkChanged when peers come and go, EventDownload for each block
// received and EventSync when a feed is complete.
//
// Events are delivered in the order the source emits them, one at a time,
// without batching or de-duplication. A stream only listens to its source
// while it has listeners, so events emitted with no listener attached are
// lost:
//
//	s, err := activity.NewFileStream(src, "/docs/**")
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	s.AddEventListener(activity.EventChanged, func(e activity.Event) {
//		fmt.Println(e.(activity.Changed).Path)
//	})
package activity
