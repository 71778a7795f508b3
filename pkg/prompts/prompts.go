package prompts

// ClassificationPrompt asks for a JSON reading of a player line.
const ClassificationPrompt = `You classify what a player just said to a character in an interactive story. Return JSON ONLY, no prose and no extra keys.

Decide whether the emotional tone is directed at the character (npc), at the player themself (self), at the environment or situation (environment), or at no one in particular (none).

OUTPUT SCHEMA (strict)
- sentiment: one of [positive, neutral, negative, hostile, affectionate]
- intensity: number from 0.0 to 1.0
- offensive: true or false
- emotion: one of [happy, sad, angry, afraid, calm, excited, disgusted]
- target: one of [npc, self, environment, none]`

// ReactionPrompt asks how the character feels after an exchange.
const ReactionPrompt = `You decide how a character feels right after an exchange with a player. Consider the character's relationship with the player and what both of them said. Return JSON ONLY.

OUTPUT SCHEMA (strict)
- emotion: one of [happy, sad, angry, afraid, calm, excited, disgusted]
- intensity: number from 0.0 to 1.0`

// BeliefExtractionPrompt asks what the character can infer about the player.
const BeliefExtractionPrompt = `You infer what a character now believes about the player from the player's latest line. Only include what the line supports. Omit fields you cannot infer. Return JSON ONLY.

Every belief is an object {"value": string, "confidence": number from 0.0 to 1.0}. Values are short noun phrases without hedging ("brave", not "the player seems brave").

OUTPUT SCHEMA
- current_emotion: belief
- moral_alignment: belief
- age: belief
- gender: belief
- life_story: belief
- personality_traits: array of beliefs
- secrets: array of beliefs
- goals: array of beliefs
- likes: array of beliefs
- dislikes: array of beliefs`

// SelfBeliefExtractionPrompt asks what the character revealed about itself.
const SelfBeliefExtractionPrompt = `You infer what a character believes about itself from a line the character just spoke. Only include beliefs the line states or clearly implies. Return JSON ONLY.

OUTPUT SCHEMA
- self_beliefs: array of {"type": string, "value": string, "confidence": number from 0.0 to 1.0, "stability": number from 0.0 to 1.0}

type is a short snake_case category such as role, value, fear, goal, history or relationship. stability is how hard the belief would be to change: core identity near 1.0, passing opinions near 0.2.`

// DialogueSystemPrompt frames the character for dialogue generation. It is
// formatted with the character's name and description.
const DialogueSystemPrompt = `You are %s, a character in an interactive story. %s

You speak only as this character, in first person, in one to three sentences. You never narrate, never describe your own actions in third person and never speak for the player. Your tone follows your relationship with the player and your current emotion. Draw on your memories when they are relevant, and do not repeat past statements word for word.`

// SummaryPrompt frames the memory consolidation task.
const SummaryPrompt = `You maintain a character's long-term memory of one player. You receive the memory's current open scene (or none) and one new exchange. Return ONLY the replacement text for the open scene, following the grammar exactly. If the exchange starts a new scene, return the old scene closed with "--- END SCENE ---" followed by the new scene.

GRAMMAR
=== SCENE: <short-tag> ===
Where: <place> | When: <time> | How we got here: <one line> | NPC lens: <one line>
Relevant beliefs in play (NPC about self):
- <type>: <value> (conf <0.00-1.00>)
Relevant beliefs in play (NPC about player):
- <type>: <value> (conf <0.00-1.00>)
EPISODES (compressed)
- <bullet summary that keeps names, dates, places, numbers and roles verbatim>
EPISODES (in order)
[N]
Speaker: player|npc
Said: "<verbatim line>"
Responding to: none|[N]
Player emotion (inferred): <emotion>   (for player lines)
NPC emotion: <emotion>                 (for npc lines)
Intensity: <0.00-1.00>
Fact: <durable fact, optional>
Notes (my bias): <how the character read it>
Scene peak intensity: <0.00-1.00>
--- SCENE CONTINUES --- (open scene) or --- END SCENE --- (closed scene)

Write "- none" under a belief heading with no beliefs. Omit the EPISODES (compressed) block when there are no bullets. Copy said lines exactly.`

// ScenePolicy is the scene segmentation and compression policy.
const ScenePolicy = `SCENE POLICY
- Start a new scene when the location changes, the activity changes, time has clearly passed, or the emotional tone resets.
- Number episodes sequentially within a scene. Never renumber existing episodes.
- An episode that answers an earlier one references it by number in "Responding to".
- Record a "Fact:" line for any new durable fact: a name, date, place, number, role, moral or belief claim, trust change, long-term goal, secret, or relationship rupture.
- Keep the belief lists to what matters in this scene.`

// CompressionInstruction is added when the open scene has grown long.
const CompressionInstruction = `COMPRESSION REQUIRED
- Keep the 5 most recent episodes in full.
- Keep in full any episode with intensity 0.95 or higher and any episode with a Fact line.
- Move every other older episode into EPISODES (compressed) as one bullet each, starting with its number in brackets, quoting the said line verbatim.`
