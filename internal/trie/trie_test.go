package trie

import "testing"

func TestAddReturnsTrueOnlyForFirstSubscriber(t *testing.T) {
	tr := New()
	if first := Add(tr, []byte("news.")); !first {
		t.Fatalf("first Add of a key must report true")
	}
	if first := Add(tr, []byte("news.")); first {
		t.Fatalf("second Add of the same key must report false")
	}
}

func TestRemoveReturnsTrueOnlyForLastSubscriber(t *testing.T) {
	tr := New()
	Add(tr, []byte("a"))
	Add(tr, []byte("a"))

	if last := Remove(tr, []byte("a")); last {
		t.Fatalf("removing one of two subscribers must report false")
	}
	if last := Remove(tr, []byte("a")); !last {
		t.Fatalf("removing the final subscriber must report true")
	}
}

func TestCheckMatchesPrefix(t *testing.T) {
	tr := New()
	Add(tr, []byte("news."))
	Add(tr, []byte("sports."))

	if !Check(tr, []byte("news.weather")) {
		t.Fatalf("news.weather should match subscription news.")
	}
	if Check(tr, []byte("finance.stocks")) {
		t.Fatalf("finance.stocks should not match any subscription")
	}
	if !Check(tr, []byte("sports.football")) {
		t.Fatalf("sports.football should match subscription sports.")
	}
}

func TestCheckEmptySubscriptionMatchesEverything(t *testing.T) {
	tr := New()
	Add(tr, []byte(""))

	if !Check(tr, []byte("anything")) {
		t.Fatalf("an empty-key subscription must match every message")
	}
}

func TestSubscribeUnsubscribeRoundTrip(t *testing.T) {
	tr := New()
	Add(tr, []byte("k"))
	before := Check(tr, []byte("k"))
	Add(tr, []byte("k"))
	Remove(tr, []byte("k"))
	after := Check(tr, []byte("k"))

	if before != after {
		t.Fatalf("subscribe then unsubscribe must return the trie to its prior state")
	}
}

func TestApplyEnumeratesLiveKeysOnly(t *testing.T) {
	tr := New()
	Add(tr, []byte("a"))
	Add(tr, []byte("ab"))
	Remove(tr, []byte("ab"))

	var seen []string
	Apply(tr, func(key []byte) { seen = append(seen, string(key)) })

	if len(seen) != 1 || seen[0] != "a" {
		t.Fatalf("Apply() = %v; want exactly [\"a\"] since \"ab\" was unsubscribed", seen)
	}
}
