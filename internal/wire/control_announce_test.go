package wire

import (
	"reflect"
	"testing"
)

func TestAnnounceRoundTrip(t *testing.T) {
	t.Parallel()
	a := Announce{Namespace: []string{"live", "camera1"}}
	got, err := ParseAnnounce(SerializeAnnounce(a))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(got.Namespace, a.Namespace) {
		t.Fatalf("got %v, want %v", got.Namespace, a.Namespace)
	}
}

func TestAnnounceErrorRoundTrip(t *testing.T) {
	t.Parallel()
	ae := AnnounceError{Namespace: []string{"live"}, ErrorCode: 403, ReasonPhrase: "forbidden"}
	got, err := ParseAnnounceError(SerializeAnnounceError(ae))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(got, ae) {
		t.Fatalf("got %+v, want %+v", got, ae)
	}
}

func TestUnannounceRoundTrip(t *testing.T) {
	t.Parallel()
	u := Unannounce{Namespace: []string{"live", "camera1"}}
	got, err := ParseUnannounce(SerializeUnannounce(u))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(got.Namespace, u.Namespace) {
		t.Fatalf("got %v, want %v", got.Namespace, u.Namespace)
	}
}

func TestSubscribeDoneRoundTrip(t *testing.T) {
	t.Parallel()
	sd := SubscribeDone{RequestID: 3, StatusCode: 0, StreamCount: 1, ReasonPhrase: "ended", HasLast: true, LastGroup: 7, LastObject: 2}
	got, err := ParseSubscribeDone(SerializeSubscribeDone(sd))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != sd {
		t.Fatalf("got %+v, want %+v", got, sd)
	}
}

func TestClientSetupServerSetupRoundTrip(t *testing.T) {
	t.Parallel()
	cs := ClientSetup{Versions: []uint64{Version}, Path: "camera1", HasPath: true, MaxRequestID: 50}
	got, err := ParseClientSetup(SerializeClientSetup(cs))
	if err != nil {
		t.Fatalf("parse client setup: %v", err)
	}
	if !reflect.DeepEqual(got.Versions, cs.Versions) || got.Path != cs.Path || got.HasPath != cs.HasPath || got.MaxRequestID != cs.MaxRequestID {
		t.Fatalf("got %+v, want %+v", got, cs)
	}

	ss := ServerSetup{SelectedVersion: Version, MaxRequestID: 100}
	gotSS, err := ParseServerSetup(SerializeServerSetup(ss))
	if err != nil {
		t.Fatalf("parse server setup: %v", err)
	}
	if gotSS != ss {
		t.Fatalf("got %+v, want %+v", gotSS, ss)
	}
}

func TestSubscribeSerializeParseRoundTrip(t *testing.T) {
	t.Parallel()
	s := Subscribe{
		RequestID:  1,
		Namespace:  []string{"live", "camera1"},
		TrackName:  "video",
		Priority:   10,
		GroupOrder: GroupOrderAscending,
		FilterType: FilterLatestObject,
	}
	got, err := ParseSubscribe(SerializeSubscribe(s))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.RequestID != s.RequestID || !reflect.DeepEqual(got.Namespace, s.Namespace) ||
		got.TrackName != s.TrackName || got.FilterType != s.FilterType {
		t.Fatalf("got %+v, want %+v", got, s)
	}
}

func TestSubscribeOKSubscribeErrorRoundTrip(t *testing.T) {
	t.Parallel()
	ok := SubscribeOK{RequestID: 1, TrackAlias: 2, Expires: 0, GroupOrder: GroupOrderAscending, ContentExists: true, LargestGroup: 5, LargestObj: 1}
	gotOK, err := ParseSubscribeOK(SerializeSubscribeOK(ok))
	if err != nil {
		t.Fatalf("parse ok: %v", err)
	}
	if gotOK != ok {
		t.Fatalf("got %+v, want %+v", gotOK, ok)
	}

	se := SubscribeError{RequestID: 1, ErrorCode: 404, ReasonPhrase: "not found"}
	gotSE, err := ParseSubscribeError(SerializeSubscribeError(se))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if gotSE != se {
		t.Fatalf("got %+v, want %+v", gotSE, se)
	}
}

func TestUnsubscribeSerializeParseRoundTrip(t *testing.T) {
	t.Parallel()
	u := Unsubscribe{RequestID: 9}
	got, err := ParseUnsubscribe(SerializeUnsubscribe(u))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != u {
		t.Fatalf("got %+v, want %+v", got, u)
	}
}
