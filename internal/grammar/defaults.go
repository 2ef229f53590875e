package grammar

// DefaultPhrases is the built-in command set: English commands followed by
// phonetic spellings of the same commands in Norwegian, Finnish and Northern
// Sámi, as the small English acoustic model hears them.
var DefaultPhrases = []string{
	// English
	"boom boom", "bad game", "this game sucks",
	"bedroom player", "boss level one", "corruption level",
	"i challenge you to a rap battle",
	"candy world", "slime world", "neutral world",
	"play mozart", "mute sound", "summon", "pizza", "help", "kill them", "i love you",

	// Norwegian
	"dorlee spill", "detta spillet soooger", "so verom spiller",
	"shef nivoh en", "korrup shon nivoh", "yai oodforrer dai til en rap battle",
	"gottery verden", "sleem verden", "noytral verden",
	"spill mozart", "demp leeden", "pawkalle",

	// Finnish
	"huo no pelli", "tama peli on pasca", "makoo hoo one pelaya",
	"pomo taso ooksi", "korrup shun taso", "haastan sinut rap taisteloon",
	"karki ma il ma", "leema ma il ma", "neutrahli ma il ma",
	"soita mozartia", "mykista aani", "kutsua",

	// Sámi
	"heyoss spelloo", "dat spelloo ee let buorre", "songut spelloo",
	"bassi dassi okta", "korup shuvna dassi", "valdan du rahpat dakon",
	"goddi mailbmi", "sleema mailbmi", "neutraala mailbmi",
	"chohpa mozart", "yoga yietna", "chokket",
}
