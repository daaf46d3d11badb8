package roomid

var birds = []string{
	"heron", "finch", "wren", "kestrel", "magpie", "plover", "swift", "lark", "osprey", "egret",
	"puffin", "ibis", "jay", "kite", "merlin", "oriole", "raven", "shrike", "tern", "warbler",
}

var places = []string{
	"harbor", "meadow", "canyon", "glacier", "lagoon", "summit", "delta", "prairie", "fjord", "atoll",
	"valley", "orchard", "quarry", "tundra", "marsh", "dune", "grove", "reef", "ridge", "cove",
}

var colors = []string{
	"amber", "cobalt", "coral", "crimson", "indigo", "jade", "lilac", "ochre", "olive", "pearl",
	"russet", "saffron", "scarlet", "silver", "teal", "umber", "violet", "azure", "ivory", "onyx",
}

var moods = []string{
	"brave", "calm", "eager", "gentle", "merry", "nimble", "quiet", "witty", "bold", "bright",
	"clever", "daring", "fancy", "keen", "lively", "proud", "rapid", "sunny", "tidy", "vivid",
}

var instruments = []string{
	"banjo", "cello", "drum", "flute", "gong", "harp", "lute", "oboe", "piano", "sitar",
	"tuba", "viola", "zither", "bugle", "cornet", "fiddle", "kazoo", "lyre", "organ", "piccolo",
}
