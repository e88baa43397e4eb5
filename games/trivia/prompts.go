package trivia

// promptPool is the shared prompt source; each round draws from it
// without replacement until the pool runs dry, then reshuffles.
var promptPool = []string{
	"The worst possible name for a pet goldfish",
	"A rejected flavor of toothpaste",
	"The real reason the dinosaurs went extinct",
	"Something you should never say at a job interview",
	"The worst superpower to be stuck with",
	"A terrible slogan for a dentist's office",
	"What robots dream about at night",
	"The most useless exercise machine ever invented",
	"A bad thing to shout during a wedding",
	"The secret ingredient in grandma's cooking",
	"An unlikely headline for tomorrow's newspaper",
	"The worst thing to find in your sandwich",
	"A rejected Olympic sport",
	"What cats are actually plotting",
	"The least inspiring motivational poster",
	"A terrible name for a luxury perfume",
	"Something you shouldn't microwave, but want to",
	"The worst possible theme for a birthday party",
	"An app nobody asked for",
	"The first thing aliens would say upon landing",
	"A bad place to take a first date",
	"The most disappointing fortune cookie message",
	"What the office printer is really thinking",
	"A rejected crayon color name",
	"The worst song to play at a funeral",
	"An item that should never be sold second-hand",
	"The least convincing excuse for being late",
	"A strange thing to whisper to a houseplant",
	"The worst prize to win in a raffle",
	"Something that would ruin a magic show instantly",
}
